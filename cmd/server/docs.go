package main

//go:generate swag init -g cmd/server/main.go -o docs

// @title           Datagage API
// @version         0.1.0
// @description     Source onboarding through the ELT platform, sales analytics, narrative insights and BI embeds.
// @host            localhost:3000
// @BasePath        /
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
