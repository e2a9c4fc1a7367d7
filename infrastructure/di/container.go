package di

import (
	"go.uber.org/zap"

	"ontology/application/services"
	"ontology/infrastructure/config"
	"ontology/interfaces/http/rest"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *zap.Logger
	NodeService *services.NodeService
	Router      *rest.Router
}
