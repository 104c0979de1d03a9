package handlers

import (
	"github.com/fluxorio/todo-service/pkg/web"
)

// Register mounts all routes on router
func Register(router *web.FastRouter, todos *TodoHandler, system *SystemHandler) {
	router.GET("/api/todos", todos.ListTodos)
	router.GET("/api/todos/:id", todos.GetTodo)
	router.POST("/api/todos", todos.CreateTodo)
	router.PUT("/api/todos/:id", todos.UpdateTodo)
	router.DELETE("/api/todos/:id", todos.DeleteTodo)
	router.GET("/api/stats", todos.GetStats)

	router.GET("/health", system.Health)
	router.GET("/metrics", system.Metrics)
	router.NotFound(system.NotFound)
}
