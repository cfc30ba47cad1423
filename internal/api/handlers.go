package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/liliang-cn/gamedex/pkg/core"
	"github.com/liliang-cn/gamedex/pkg/ingest"
	"github.com/liliang-cn/gamedex/pkg/query"
	"github.com/liliang-cn/gamedex/pkg/schema"
	"github.com/liliang-cn/gamedex/pkg/similarity"
	"github.com/liliang-cn/gamedex/pkg/stats"
)

// reservedParams are query-string keys that steer pagination rather than
// filtering.
var reservedParams = map[string]bool{
	"cursor": true,
	"limit":  true,
}

// filterParams extracts filter parameters from the query string, skipping the
// named control keys. Repeated keys keep their first value.
func filterParams(c *gin.Context, skip map[string]bool) map[string]string {
	params := make(map[string]string)
	for key, values := range c.Request.URL.Query() {
		if skip[key] || len(values) == 0 {
			continue
		}
		params[key] = values[0]
	}
	return params
}

func (s *Server) handleQuery(c *gin.Context) {
	var cursor int64
	if v := c.Query("cursor"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("cursor %q is not a non-negative integer", v)})
			return
		}
		cursor = n
	}

	var limit int
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("limit %q is not an integer", v)})
			return
		}
		limit = n
	}

	page, err := s.engine.Query(c.Request.Context(), filterParams(c, reservedParams), cursor, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	records := page.Records
	if records == nil {
		records = []core.Record{}
	}
	resp := gin.H{
		"status":  fmt.Sprintf("%d found", page.Total),
		"results": records,
	}
	if page.Next != nil {
		resp["cursor"] = *page.Next
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGetRecord(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "record id must be an integer"})
		return
	}

	rec, err := s.engine.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// statsParams are control keys the stats endpoint consumes itself.
var statsParams = map[string]bool{
	"aggregate": true,
	"column":    true,
}

func (s *Server) handleStats(c *gin.Context) {
	fn := c.DefaultQuery("aggregate", "mean")
	column := c.DefaultQuery("column", "all")

	result, err := s.engine.Aggregate(c.Request.Context(), fn, column, filterParams(c, statsParams))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

func (s *Server) handleSimilar(c *gin.Context) {
	k := 0
	if v := c.Query("k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("k %q is not a positive integer", v)})
			return
		}
		k = n
	}

	idParam := c.Query("id")
	text := c.Query("text")
	switch {
	case idParam != "" && text != "":
		c.JSON(http.StatusBadRequest, gin.H{"error": "pass either id or text, not both"})
		return
	case idParam != "":
		id, err := strconv.ParseInt(idParam, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "id must be an integer"})
			return
		}
		excludeSelf := c.Query("exclude_self") == "true"
		matches, err := s.engine.SimilarByID(c.Request.Context(), id, k, excludeSelf)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": matches})
	case text != "":
		matches, err := s.engine.SimilarByText(c.Request.Context(), text, k)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": matches})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "id or text is required"})
	}
}

func (s *Server) handleUpload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field \"file\" is required"})
		return
	}

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read uploaded file"})
		return
	}
	defer f.Close()

	res, err := s.engine.ImportReader(c.Request.Context(), f, file.Filename, "upload")
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, importResponse(res))
}

func (s *Server) handleIngestURL(c *gin.Context) {
	var req struct {
		URL string `json:"url" binding:"required,url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must carry a valid \"url\" field"})
		return
	}

	res, err := s.engine.ImportURL(c.Request.Context(), req.URL)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, importResponse(res))
}

func importResponse(res *ingest.Result) gin.H {
	rejections := res.Rejections
	if rejections == nil {
		rejections = []core.Rejection{}
	}
	return gin.H{
		"event_id":   res.EventID,
		"accepted":   res.Accepted,
		"rejected":   res.Rejected,
		"rejections": rejections,
	}
}

func (s *Server) handleEvents(c *gin.Context) {
	events, err := s.engine.Events(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if events == nil {
		events = []core.IngestEvent{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// writeError maps domain errors onto HTTP statuses. Anything unrecognized is
// a 500 with a generic body so internals never leak.
func writeError(c *gin.Context, err error) {
	var verr *query.ValidationError
	var herr *ingest.HeaderError
	switch {
	case errors.As(err, &verr),
		errors.As(err, &herr),
		errors.Is(err, schema.ErrUnknownField),
		errors.Is(err, stats.ErrUnknownFunc),
		errors.Is(err, stats.ErrUnsupported),
		errors.Is(err, stats.ErrBadColumn),
		errors.Is(err, similarity.ErrEmptyQuery),
		errors.Is(err, ingest.ErrEmptySource):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, core.ErrNotFound),
		errors.Is(err, similarity.ErrNotIndexed):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ingest.ErrSourceTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
