package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nvr-ai/go-yolo/models/model"
	"github.com/nvr-ai/go-yolo/models/postprocess"
	"github.com/nvr-ai/go-yolo/pipeline"
)

// resultJSON is the wire form of one result. Masks are summarised by their area.
type resultJSON struct {
	Kind      postprocess.Kind       `json:"kind"`
	Box       [4]float32             `json:"box"`
	Score     float32                `json:"score"`
	Class     int                    `json:"class"`
	Label     string                 `json:"label"`
	MaskArea  *int                   `json:"mask_area,omitempty"`
	Keypoints []postprocess.Keypoint `json:"keypoints,omitempty"`
}

func toJSON(r postprocess.Result) resultJSON {
	b := r.Bounds()
	out := resultJSON{
		Kind:  r.Kind(),
		Box:   [4]float32{b.X1, b.Y1, b.X2, b.Y2},
		Score: r.Confidence(),
		Class: r.ClassID(),
	}
	switch v := r.(type) {
	case postprocess.Detection:
		out.Label = v.Label
	case postprocess.Segmentation:
		out.Label = v.Label
		area := v.MaskArea()
		out.MaskArea = &area
	case postprocess.Pose:
		out.Label = v.Label
		out.Keypoints = v.Keypoints[:]
	}
	return out
}

func outcomeJSON(o pipeline.Outcome) gin.H {
	results := make([]resultJSON, 0, len(o.Results))
	for _, r := range o.Results {
		results = append(results, toJSON(r))
	}
	body := gin.H{
		"id":         o.ID.String(),
		"generation": o.Generation,
		"model":      o.Model,
		"type":       o.Type,
		"frame":      gin.H{"width": o.FrameSize.X, "height": o.FrameSize.Y},
		"reset":      o.Reset,
		"elapsed_ms": float64(o.Elapsed.Microseconds()) / 1000,
		"results":    results,
		"count":      len(results),
	}
	if o.Err != nil {
		body["error"] = o.Err.Error()
	}
	return body
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"running":        s.ctrl.Running(),
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
	})
}

func (s *Server) handleResults(c *gin.Context) {
	o, ok := s.hub.Latest()
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, outcomeJSON(o))
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"stats":      s.ctrl.Stats().Snapshot(),
		"running":    s.ctrl.Running(),
		"busy":       s.ctrl.Busy(),
		"generation": s.ctrl.Generation(),
		"published":  s.hub.Count(),
	})
}

func (s *Server) handleListModels(c *gin.Context) {
	active := s.ctrl.Model().Name
	list := make([]gin.H, 0, len(s.ctrl.Catalogue()))
	for _, m := range s.ctrl.Catalogue() {
		list = append(list, gin.H{
			"name":        m.Name,
			"title":       m.Title,
			"description": m.Description,
			"type":        m.Type,
			"active":      m.Name == active,
		})
	}
	c.JSON(http.StatusOK, gin.H{"models": list, "active": active})
}

type selectRequest struct {
	Name model.Name `json:"name" binding:"required"`
}

func (s *Server) handleSelectModel(c *gin.Context) {
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.ctrl.Select(req.Name); err != nil {
		s.log.Warn("model switch rejected", "model", string(req.Name), "err", err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": s.ctrl.Model().Name, "generation": s.ctrl.Generation()})
}

func (s *Server) handleStart(c *gin.Context) {
	if err := s.ctrl.Start(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"running": s.ctrl.Running()})
}

func (s *Server) handleStop(c *gin.Context) {
	s.ctrl.Stop()
	c.JSON(http.StatusOK, gin.H{"running": s.ctrl.Running(), "generation": s.ctrl.Generation()})
}
