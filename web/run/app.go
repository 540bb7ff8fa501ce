package webapp

import (
	"fmt"
	"net/http"

	"github.com/JubinSaniei/filesystem/app"
	"github.com/JubinSaniei/filesystem/models"
)

// WebApp is the HTTP transport over the core service. It only decodes
// requests, delegates to the service and encodes responses; path validation
// and sandboxing are expected to sit in front of it.
type WebApp struct {
	Service   *app.Service
	AppConfig *models.AppConfig
}

func NewWebApp(service *app.Service, cfg *models.AppConfig) *WebApp {
	return &WebApp{Service: service, AppConfig: cfg}
}

func (webapp *WebApp) GetListenAddr() string {
	port := 8080
	if webapp.AppConfig != nil && webapp.AppConfig.Server.Port > 0 {
		port = webapp.AppConfig.Server.Port
	}
	return fmt.Sprintf(":%d", port)
}

func (webapp *WebApp) GetRouter() http.Handler {
	return router(webapp)
}
