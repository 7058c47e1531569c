package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/maillage/linkcheck"
	"github.com/use-agent/maillage/models"
)

// Check returns a handler for POST /api/v1/check.
//
// It inspects one candidate page for a link to one target page, without a
// search. A page that cannot be fetched answers 502 with the outcome the
// classifier would have recorded.
func Check(cl *linkcheck.Classifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.CheckRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.CheckResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: "invalid request: " + err.Error(),
				},
			})
			return
		}

		out := cl.Classify(c.Request.Context(), req.Keyword, req.TargetURL, req.CandidateURL)
		resp := models.CheckResponse{
			Success:         out.Err == nil,
			LinkExists:      out.LinkExists,
			AnchorOptimized: out.AnchorOptimized,
			AnchorState:     out.AnchorState(),
			AnchorText:      out.AnchorText,
			Href:            out.Href,
			Position:        out.Position,
		}
		if rec, ok := linkcheck.Record(req.Keyword, req.TargetURL, req.CandidateURL, out); ok {
			resp.Action = rec.Action
		}

		if out.Err != nil {
			resp.Error = &models.ErrorDetail{Code: models.CodeOf(out.Err), Message: out.Err.Error()}
			c.JSON(http.StatusBadGateway, resp)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}
