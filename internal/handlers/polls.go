package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/livepoll/livepoll/internal/entity"
	"github.com/livepoll/livepoll/internal/middleware"
	"github.com/livepoll/livepoll/internal/repo"
	"github.com/livepoll/livepoll/internal/services"
)

type PollsHandler struct {
	pollService *services.Polls
}

type CreatePollRequest struct {
	Question    string   `json:"question" binding:"required"`
	Options     []string `json:"options" binding:"required,min=2,dive,required"`
	CreatorName string   `json:"creator_name"`
}

type CastVoteRequest struct {
	OptionID  string `json:"option_id" binding:"required"`
	VoterName string `json:"voter_name"`
}

func NewPollsHandler(pollService *services.Polls) *PollsHandler {
	return &PollsHandler{pollService: pollService}
}

func (h *PollsHandler) CreatePoll(c *gin.Context) {
	var req CreatePollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	// Resolved identity wins over a supplied name.
	creator := req.CreatorName
	if id, ok := middleware.FromContext(c).ID(); ok {
		creator = id
	}
	if creator == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "creator name is required"})
		return
	}

	poll, err := h.pollService.CreatePoll(c.Request.Context(), req.Question, req.Options, creator)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"poll": poll, "tally": zeroTally(poll)})
}

func (h *PollsHandler) GetPollByID(c *gin.Context) {
	pollID := c.Param("id")

	poll, err := h.pollService.GetPollByID(c.Request.Context(), pollID)
	if err != nil {
		respondError(c, err)
		return
	}

	tally, err := h.pollService.ComputeTally(c.Request.Context(), pollID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"poll": poll, "tally": tally})
}

func (h *PollsHandler) GetPolls(c *gin.Context) {
	polls, err := h.pollService.GetPolls(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"polls": polls})
}

func (h *PollsHandler) CastVote(c *gin.Context) {
	var req CastVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	voter := req.VoterName
	if id, ok := middleware.FromContext(c).ID(); ok {
		voter = id
	}
	if voter == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "voter name is required"})
		return
	}

	_, tally, err := h.pollService.CastVote(c.Request.Context(), c.Param("id"), req.OptionID, voter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tally": tally})
}

func (h *PollsHandler) GetResults(c *gin.Context) {
	tally, err := h.pollService.ComputeTally(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tally": tally})
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repo.ErrPollNotFound), errors.Is(err, repo.ErrOptionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, repo.ErrDuplicateVote):
		c.JSON(http.StatusConflict, gin.H{"error": "voter has already voted in this poll"})
	case errors.Is(err, repo.ErrStorageUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable, retry later"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func zeroTally(poll entity.Poll) []entity.TallyEntry {
	tally := make([]entity.TallyEntry, 0, len(poll.Options))
	for _, option := range poll.Options {
		tally = append(tally, entity.TallyEntry{OptionID: option.ID, Text: option.Text})
	}
	return tally
}
