package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/madgroup31/teamon-sub001/logging"
	"github.com/madgroup31/teamon-sub001/models"
	"github.com/madgroup31/teamon-sub001/services"
	"github.com/madgroup31/teamon-sub001/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The gateway in front of this service enforces origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamHandler upgrades to a websocket and forwards live subscription
// results until either side closes. Each connection owns its own
// subscription; closing the socket cancels it and detaches the listener.
type StreamHandler struct {
	tasks    *services.TaskService
	projects *services.ProjectService
	chats    *services.ChatService
	users    *services.UserService
}

func NewStreamHandler(tasks *services.TaskService, projects *services.ProjectService, chats *services.ChatService, users *services.UserService) *StreamHandler {
	return &StreamHandler{tasks: tasks, projects: projects, chats: chats, users: users}
}

func (h *StreamHandler) StreamTasks(w http.ResponseWriter, r *http.Request) {
	sub, err := h.tasks.StreamTasks(r.Context(), mux.Vars(r)["projectID"])
	if err != nil {
		writeError(w, err)
		return
	}
	serveStream[models.Task](w, r, sub)
}

func (h *StreamHandler) StreamProjects(w http.ResponseWriter, r *http.Request) {
	sub, err := h.projects.StreamProjectsForTeam(r.Context(), mux.Vars(r)["teamID"])
	if err != nil {
		writeError(w, err)
		return
	}
	serveStream[models.Project](w, r, sub)
}

func (h *StreamHandler) StreamMessages(w http.ResponseWriter, r *http.Request) {
	sub, err := h.chats.StreamMessages(r.Context(), mux.Vars(r)["chatID"])
	if err != nil {
		writeError(w, err)
		return
	}
	serveStream[models.Message](w, r, sub)
}

func (h *StreamHandler) StreamProfile(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFrom(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	sub, err := h.users.StreamUser(r.Context(), actor.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	serveStream[models.User](w, r, sub)
}

func serveStream[T any](w http.ResponseWriter, r *http.Request, sub *store.Subscription) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		sub.Cancel()
		return
	}
	defer conn.Close()
	defer sub.Cancel()

	// The peer closing the socket must cancel the subscription even while
	// we are blocked waiting for the next result.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				sub.Cancel()
				return
			}
		}
	}()

	for result := range store.Decode[T](sub) {
		if result.Err != nil {
			_ = conn.WriteJSON(map[string]string{"error": result.Err.Error()})
			return
		}
		if err := conn.WriteJSON(result.Docs); err != nil {
			logging.Logger.Debugf("Stream write ended: %v", err)
			return
		}
	}
}
