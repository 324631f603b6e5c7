package main

import (
	"bytes"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"goveiss/internal/capture"
	"goveiss/internal/common"
	"goveiss/internal/session"
)

type captureUpload struct {
	Exercise string  `json:"exercise" binding:"required"`
	Device   string  `json:"device"`
	Weight   float64 `json:"weight"`
	RateHint float64 `json:"rate"`
	RawData  string  `json:"data"     binding:"required"` // base64 encoded CSV capture
}

// PutCapture corrects an uploaded CSV capture. Every session id in the
// capture becomes one set of a new session.
func (this *RequestHandler) PutCapture(c *gin.Context) {
	var upload captureUpload
	if err := c.ShouldBindJSON(&upload); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	csvData, err := base64.StdEncoding.DecodeString(upload.RawData)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	captures, err := capture.ReadCSV(bytes.NewReader(csvData))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	if len(captures) == 0 {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": "capture has no rows"})
		return
	}

	sets := make([]*session.ValidatedReps, 0, len(captures))
	for i, capt := range captures {
		sets = append(sets, session.ValidateSet(upload.Exercise, i+1, capt.Buffer, upload.Weight, upload.RateHint,
			this.Config.Tuning, this.Logger))
	}
	sessionId, setIds, err := common.InsertCompletedSession(this.Db, upload.Exercise, upload.Device, time.Now(), sets)
	if err != nil {
		this.Logger.Error("could not store capture", "exercise", upload.Exercise, "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	for _, id := range setIds {
		this.Notifier.Notify(id)
	}

	c.JSON(http.StatusCreated, gin.H{"id": sessionId, "sets": setIds})
}
