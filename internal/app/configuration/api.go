package configuration

import (
	"fmt"
	"net/http"

	"github.com/form3tech-oss/pact-consumer/internal/app/httpresponse"
	"github.com/form3tech-oss/pact-consumer/internal/app/plugin"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

type adminAPI struct {
	config   Config
	registry *plugin.Registry
}

func ServeAdminAPI(port int, config Config) *echo.Echo {
	adminServer := NewAdminAPI(config)

	go func() {
		address := fmt.Sprintf(":%d", port)
		if err := adminServer.Start(address); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	return adminServer
}

// NewAdminAPI returns the admin API handler without starting it.
func NewAdminAPI(config Config) *echo.Echo {
	api := &adminAPI{config: config, registry: config.Registry()}

	adminServer := echo.New()
	adminServer.HideBanner = true

	adminServer.GET("/mock-servers", listMockServersHandler)
	adminServer.POST("/mock-servers", api.postMockServersHandler)
	adminServer.DELETE("/mock-servers", deleteMockServersHandler)
	adminServer.GET("/mock-servers/:id/pact", pactHandler)
	adminServer.GET("/mock-servers/:id/verification", verificationHandler)
	adminServer.DELETE("/mock-servers/:id", deleteMockServerHandler)

	return adminServer
}

func listMockServersHandler(c echo.Context) error {
	infos := ListServers()
	if infos == nil {
		infos = []ServerInfo{}
	}
	return c.JSON(http.StatusOK, infos)
}

func deleteMockServersHandler(c echo.Context) error {
	log.Infof("stopping all mock servers")
	StopAllServers()
	return c.NoContent(http.StatusNoContent)
}

func (api *adminAPI) postMockServersHandler(c echo.Context) error {
	definition := Definition{}
	err := c.Bind(&definition)
	if err != nil {
		return c.JSON(
			http.StatusBadRequest,
			httpresponse.Errorf("unable to parse definition from data. %s", err.Error()),
		)
	}

	if err := definition.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, httpresponse.Error(err.Error()))
	}

	pact, err := definition.Build(c.Request().Context(), api.registry)
	if err != nil {
		return c.JSON(
			http.StatusBadRequest,
			httpresponse.Errorf("unable to build contract from definition. %s", err.Error()),
		)
	}

	log.Infof("starting mock server for %s -> %s", pact.Consumer, pact.Provider)

	info, err := StartServer(pact, api.config.MockServer)
	if err != nil {
		return c.JSON(
			http.StatusInternalServerError,
			httpresponse.Errorf("unable to start mock server. %s", err.Error()),
		)
	}

	return c.JSON(http.StatusCreated, info)
}

func pactHandler(c echo.Context) error {
	s, ok := loadServer(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, httpresponse.Errorf("mock server %s not found", c.Param("id")))
	}
	return c.JSON(http.StatusOK, s.pact)
}

func verificationHandler(c echo.Context) error {
	s, ok := loadServer(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, httpresponse.Errorf("mock server %s not found", c.Param("id")))
	}

	v, err := s.handle.Verify()
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, httpresponse.Error(err.Error()))
	}
	if !v.OK() {
		return c.JSON(http.StatusExpectationFailed, v)
	}
	return c.JSON(http.StatusOK, v)
}

func deleteMockServerHandler(c echo.Context) error {
	if !StopServer(c.Param("id")) {
		return c.JSON(http.StatusNotFound, httpresponse.Errorf("mock server %s not found", c.Param("id")))
	}
	return c.NoContent(http.StatusNoContent)
}
