package main

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"goveiss/internal/common"
	"goveiss/internal/formats/tof"
)

func (this *RequestHandler) GetDevice(c *gin.Context) {
	device, err := common.GetDevice(this.Db, c.Param("id"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
		} else {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, device)
}

func (this *RequestHandler) PutDevice(c *gin.Context) {
	var device common.Device
	if err := c.ShouldBindJSON(&device); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if device.Format != tof.FORMAT_A && device.Format != tof.FORMAT_B {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": (&tof.UnknownFormatError{}).Error()})
		return
	}

	if err := common.PutDevice(this.Db, &device); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	} else {
		c.JSON(http.StatusCreated, gin.H{"id": device.Id})
	}
}

func (this *RequestHandler) DeleteDevice(c *gin.Context) {
	if err := common.DeleteDevice(this.Db, c.Param("id")); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	} else {
		c.Status(http.StatusNoContent)
	}
}
