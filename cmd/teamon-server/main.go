package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/madgroup31/teamon-sub001/config"
	"github.com/madgroup31/teamon-sub001/handlers"
	"github.com/madgroup31/teamon-sub001/logging"
	"github.com/madgroup31/teamon-sub001/services"
	"github.com/madgroup31/teamon-sub001/store"
)

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logging.Init(cfg.Env, cfg.LogFile)
	logging.Logger.Info("Starting TeamOn core service...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := store.Connect(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		logging.Logger.Fatalf("Database connection failed: %v", err)
	}
	defer db.Close(context.Background())
	logging.Logger.Infof("Connected to MongoDB at %s, database %s", cfg.MongoURI, cfg.MongoDBName)

	blobs := store.NewGridFSBlobStore(db.Database())

	taskService := services.NewTaskService(db)
	projectService := services.NewProjectService(db)
	teamService := services.NewTeamService(db)
	feedbackService := services.NewFeedbackService(db)
	chatService := services.NewChatService(db)
	attachmentService := services.NewAttachmentService(db, blobs)
	userService := services.NewUserService(db, blobs)

	taskHandler := handlers.NewTaskHandler(taskService)
	projectHandler := handlers.NewProjectHandler(projectService, userService)
	teamHandler := handlers.NewTeamHandler(teamService, feedbackService)
	chatHandler := handlers.NewChatHandler(chatService)
	attachmentHandler := handlers.NewAttachmentHandler(attachmentService)
	userHandler := handlers.NewUserHandler(userService)
	streamHandler := handlers.NewStreamHandler(taskService, projectService, chatService, userService)
	blobHandler := handlers.NewBlobHandler(blobs)

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.Use(handlers.AuthMiddleware(cfg.JWTSecret))

	// Tasks
	api.HandleFunc("/projects/{projectID}/tasks", taskHandler.CreateTask).Methods(http.MethodPost)
	api.HandleFunc("/projects/{projectID}/tasks/recurring", taskHandler.CreateRecursiveTasks).Methods(http.MethodPost)
	api.HandleFunc("/projects/{projectID}/tasks/{taskID}", taskHandler.DeleteTask).Methods(http.MethodDelete)
	api.HandleFunc("/tasks/{taskID}", taskHandler.GetTask).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{taskID}", taskHandler.UpdateTask).Methods(http.MethodPut)
	api.HandleFunc("/tasks/{taskID}/history", taskHandler.GetTaskHistory).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{taskID}/comments", taskHandler.AddComment).Methods(http.MethodPost)

	// Attachments
	api.HandleFunc("/tasks/{taskID}/attachments", attachmentHandler.CreateAttachment).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{taskID}/attachments/{attachmentID}", attachmentHandler.DeleteAttachment).Methods(http.MethodDelete)
	api.HandleFunc("/attachments/{attachmentID}", attachmentHandler.GetAttachment).Methods(http.MethodGet)
	api.HandleFunc("/attachments/{attachmentID}", attachmentHandler.UpdateAttachment).Methods(http.MethodPatch)

	// Projects
	api.HandleFunc("/projects", projectHandler.CreateProject).Methods(http.MethodPost)
	api.HandleFunc("/projects/{projectID}", projectHandler.GetProject).Methods(http.MethodGet)
	api.HandleFunc("/projects/{projectID}", projectHandler.UpdateProject).Methods(http.MethodPut)
	api.HandleFunc("/projects/{projectID}", projectHandler.DeleteProject).Methods(http.MethodDelete)
	api.HandleFunc("/projects/{projectID}/favorite", projectHandler.ToggleFavorite).Methods(http.MethodPost)
	api.HandleFunc("/teams/{teamID}/projects", projectHandler.GetProjectsForTeam).Methods(http.MethodGet)

	// Teams
	api.HandleFunc("/teams", teamHandler.AddTeam).Methods(http.MethodPost)
	api.HandleFunc("/teams/{teamID}", teamHandler.GetTeam).Methods(http.MethodGet)
	api.HandleFunc("/teams/{teamID}", teamHandler.UpdateTeam).Methods(http.MethodPut)
	api.HandleFunc("/teams/{teamID}", teamHandler.DeleteTeam).Methods(http.MethodDelete)
	api.HandleFunc("/teams/{teamID}/members/{userID}", teamHandler.AddTeamMember).Methods(http.MethodPost)
	api.HandleFunc("/teams/{teamID}/members/{userID}", teamHandler.RemoveMemberFromTeam).Methods(http.MethodDelete)
	api.HandleFunc("/teams/{teamID}/admins/{userID}", teamHandler.PromoteMemberToAdmin).Methods(http.MethodPost)
	api.HandleFunc("/teams/{teamID}/admins/{userID}", teamHandler.DemoteAdmin).Methods(http.MethodDelete)

	// Feedback
	api.HandleFunc("/feedback/{target}/{targetID}", teamHandler.AddFeedback).Methods(http.MethodPost)
	api.HandleFunc("/feedback/{target}/{targetID}", teamHandler.GetFeedbacks).Methods(http.MethodGet)

	// Users
	api.HandleFunc("/users", userHandler.CreateUser).Methods(http.MethodPost)
	api.HandleFunc("/users/{userID}", userHandler.GetUser).Methods(http.MethodGet)
	api.HandleFunc("/users/me", userHandler.UpdateProfile).Methods(http.MethodPut)
	api.HandleFunc("/users/me/image", userHandler.SetProfileImage).Methods(http.MethodPost)

	// Chats
	api.HandleFunc("/chats/direct", chatHandler.SendDirectMessage).Methods(http.MethodPost)
	api.HandleFunc("/teams/{teamID}/chat", chatHandler.SendTeamMessage).Methods(http.MethodPost)
	api.HandleFunc("/teams/{teamID}/chats", chatHandler.GetChatsForUser).Methods(http.MethodGet)
	api.HandleFunc("/chats/{chatID}", chatHandler.DeleteChat).Methods(http.MethodDelete)
	api.HandleFunc("/chats/{chatID}/messages", chatHandler.GetMessages).Methods(http.MethodGet)
	api.HandleFunc("/chats/{chatID}/unread", chatHandler.UnreadCount).Methods(http.MethodGet)
	api.HandleFunc("/messages/{messageID}/read", chatHandler.MarkRead).Methods(http.MethodPost)
	api.HandleFunc("/messages/{messageID}", chatHandler.EditMessage).Methods(http.MethodPatch)
	api.HandleFunc("/messages/{messageID}", chatHandler.DeleteMessage).Methods(http.MethodDelete)

	// Live streams
	api.HandleFunc("/projects/{projectID}/tasks/stream", streamHandler.StreamTasks).Methods(http.MethodGet)
	api.HandleFunc("/teams/{teamID}/projects/stream", streamHandler.StreamProjects).Methods(http.MethodGet)
	api.HandleFunc("/chats/{chatID}/messages/stream", streamHandler.StreamMessages).Methods(http.MethodGet)
	api.HandleFunc("/users/me/stream", streamHandler.StreamProfile).Methods(http.MethodGet)

	// Blob payloads
	api.HandleFunc("/blobs/{bucket:images|files}/{id}", blobHandler.Download).Methods(http.MethodGet)

	address := fmt.Sprintf(":%s", cfg.ServerPort)
	logging.Logger.Infof("Server running on http://localhost%s", address)
	if err := http.ListenAndServe(address, enableCORS(r)); err != nil {
		logging.Logger.Fatalf("Server failed to start: %v", err)
	}
}
