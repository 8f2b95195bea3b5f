package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/eliteGoblin/focusd/deepfocus/internal/api/dto"
	"github.com/eliteGoblin/focusd/deepfocus/internal/domain"
	"github.com/eliteGoblin/focusd/deepfocus/internal/policy"
)

// RuleHandler serves rule CRUD.
type RuleHandler struct {
	store  domain.RuleStore
	engine *policy.Engine
}

// NewRuleHandler creates a RuleHandler.
func NewRuleHandler(store domain.RuleStore, engine *policy.Engine) *RuleHandler {
	return &RuleHandler{store: store, engine: engine}
}

// List returns every rule, active or not.
func (h *RuleHandler) List(c *gin.Context) {
	rules, err := h.store.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}
	if rules == nil {
		rules = []domain.Rule{}
	}
	c.JSON(http.StatusOK, rules)
}

// Create adds a rule.
func (h *RuleHandler) Create(c *gin.Context) {
	var req dto.RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	rule := req.NewRule()
	if !h.validate(c, rule) {
		return
	}
	if err := h.store.Create(c.Request.Context(), &rule); err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, rule)
}

// Update replaces a rule's fields.
func (h *RuleHandler) Update(c *gin.Context) {
	id, ok := ruleID(c)
	if !ok {
		return
	}
	var req dto.RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	rule, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		writeStoreError(c, err)
		return
	}
	req.Apply(rule)
	if !h.validate(c, *rule) {
		return
	}
	if err := h.store.Update(c.Request.Context(), rule); err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

// Delete removes a rule.
func (h *RuleHandler) Delete(c *gin.Context) {
	id, ok := ruleID(c)
	if !ok {
		return
	}
	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MessageResponse{Message: "Rule deleted successfully"})
}

// Toggle flips a rule's active flag.
func (h *RuleHandler) Toggle(c *gin.Context) {
	id, ok := ruleID(c)
	if !ok {
		return
	}
	rule, err := h.store.Toggle(c.Request.Context(), id)
	if err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToggleResponse{ID: rule.ID, IsActive: rule.IsActive})
}

func (h *RuleHandler) validate(c *gin.Context, rule domain.Rule) bool {
	if errs := h.engine.Validate(rule); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, dto.ValidationErrorResponse{Error: "invalid rule", Errors: errs})
		return false
	}
	return true
}

func ruleID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid rule id"})
		return 0, false
	}
	return id, true
}

func writeStoreError(c *gin.Context, err error) {
	if errors.Is(err, domain.ErrRuleNotFound) {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "Rule not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
}
