package main

import (
	"os"

	"nursemate/cmd"
)

// @title           Nursemate API
// @version         1.0
// @description     RAG tutoring chat backend with SSE streaming.
// @BasePath        /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
