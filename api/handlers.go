package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/luma/cmdmessenger/protocol"
	"github.com/luma/cmdmessenger/storage"
)

type commandInfo struct {
	Name    string  `json:"name"`
	ID      int     `json:"id"`
	Formats *string `json:"formats"`
}

func (s *server) listCommands(c *gin.Context) {
	specs := s.sender.Codec().Commands().Specs()
	commands := make([]commandInfo, 0, len(specs))

	for _, spec := range specs {
		info := commandInfo{Name: spec.Name, ID: spec.ID}
		if spec.HasFormats {
			formats := spec.Formats.String()
			info.Formats = &formats
		}

		commands = append(commands, info)
	}

	c.JSON(http.StatusOK, gin.H{"commands": commands})
}

func (s *server) sendCommand(c *gin.Context) {
	name := c.Param("name")

	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if len(body) == 0 {
		body = []byte("{}")
	}

	if !gjson.ValidBytes(body) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Request body is not valid JSON"})
		return
	}

	args := gjson.GetBytes(body, "args")
	if args.Exists() && !args.IsArray() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "args must be an array"})
		return
	}

	var override protocol.Formats
	if formats := gjson.GetBytes(body, "formats"); formats.Exists() {
		if override, err = protocol.ParseFormats(formats.String()); err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
	}

	spec, formats, values, err := parseArgs(s.sender.Codec(), name, override, args.Array())
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	if err := s.sender.SendWithFormats(name, formats, values...); err != nil {
		s.log.Warn("Failed to send command", zap.String("command", name), zap.Error(err))
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "sent",
		"command": spec.Name,
		"id":      spec.ID,
		"formats": formats.String(),
	})
}

func (s *server) getState(c *gin.Context) {
	state, err := s.store.Backup()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", state)
}

func (s *server) getCommandState(c *gin.Context) {
	command := c.Param("command")

	value, err := s.store.Get(c.Request.Context(), []byte(command))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, storage.ErrNotFound) {
			status = http.StatusNotFound
		}

		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", value)
}

// statusFor maps send errors to a response status. Anything that is not a
// problem with the request is blamed on the device link.
func statusFor(err error) int {
	switch {
	case errors.Is(err, protocol.ErrUnknownCommand):
		return http.StatusNotFound

	case errors.Is(err, protocol.ErrInvalidFormatSpec),
		errors.Is(err, protocol.ErrArgumentCountMismatch),
		errors.Is(err, protocol.ErrValueOutOfRange),
		errors.Is(err, protocol.ErrInvalidValue):
		return http.StatusBadRequest
	}

	return http.StatusBadGateway
}
