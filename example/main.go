// Command example runs a small Siren API to browse against:
//
//	go run . &
//	shipwreck --base http://localhost:8080 browse
package main

import (
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const sirenType = "application/vnd.siren+json"

func main() {
	e := echo.New()

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	boxes := newBoxStore("http://localhost:8080")

	e.GET("/", boxes.index)
	e.GET("/boxes/:id", boxes.show)
	e.GET("/boxes/:id/items", boxes.items)
	e.POST("/boxes/:id", boxes.update)

	log.Fatal(e.Start(":8080"))
}

func respond(c echo.Context, code int, entity any) error {
	c.Response().Header().Set(echo.HeaderContentType, sirenType)
	c.Response().Header().Set("Cache-Control", "max-age=5")
	return c.JSON(code, entity)
}

func notFound(c echo.Context) error {
	return c.NoContent(http.StatusNotFound)
}
