package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/madgroup31/teamon-sub001/models"
	"github.com/madgroup31/teamon-sub001/services"
)

type TeamHandler struct {
	teams    *services.TeamService
	feedback *services.FeedbackService
}

func NewTeamHandler(teams *services.TeamService, feedback *services.FeedbackService) *TeamHandler {
	return &TeamHandler{teams: teams, feedback: feedback}
}

func (h *TeamHandler) AddTeam(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFrom(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	var team models.Team
	if err := json.NewDecoder(r.Body).Decode(&team); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	created, err := h.teams.AddTeam(r.Context(), actor.ID, team)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *TeamHandler) UpdateTeam(w http.ResponseWriter, r *http.Request) {
	var team models.Team
	if err := json.NewDecoder(r.Body).Decode(&team); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.teams.UpdateTeam(r.Context(), mux.Vars(r)["teamID"], team); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TeamHandler) GetTeam(w http.ResponseWriter, r *http.Request) {
	team, err := h.teams.GetTeam(r.Context(), mux.Vars(r)["teamID"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

func (h *TeamHandler) DeleteTeam(w http.ResponseWriter, r *http.Request) {
	if err := h.teams.DeleteTeam(r.Context(), mux.Vars(r)["teamID"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TeamHandler) AddTeamMember(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.teams.AddTeamMember(r.Context(), vars["teamID"], vars["userID"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TeamHandler) RemoveMemberFromTeam(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.teams.RemoveMemberFromTeam(r.Context(), vars["teamID"], vars["userID"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TeamHandler) PromoteMemberToAdmin(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.teams.PromoteMemberToAdmin(r.Context(), vars["teamID"], vars["userID"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TeamHandler) DemoteAdmin(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.teams.DemoteAdmin(r.Context(), vars["teamID"], vars["userID"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddFeedback attaches a feedback to a user, project or team depending on
// the route's target segment.
func (h *TeamHandler) AddFeedback(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFrom(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	vars := mux.Vars(r)
	var feedback models.Feedback
	if err := json.NewDecoder(r.Body).Decode(&feedback); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	feedback.AuthorID = actor.ID
	created, err := h.feedback.AddFeedback(r.Context(),
		services.FeedbackTarget(vars["target"]), vars["targetID"], feedback)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *TeamHandler) GetFeedbacks(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	feedbacks, err := h.feedback.GetFeedbacks(r.Context(),
		services.FeedbackTarget(vars["target"]), vars["targetID"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, feedbacks)
}
