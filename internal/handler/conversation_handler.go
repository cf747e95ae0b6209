package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"mindbridge/internal/model"
	"mindbridge/internal/service"
)

// ConversationHandler handles conversation endpoints.
type ConversationHandler struct {
	svc service.ConversationService
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(svc service.ConversationService) *ConversationHandler {
	return &ConversationHandler{svc: svc}
}

// CreateConversationRequest opens a conversation with its first message.
type CreateConversationRequest struct {
	Category    model.Category `json:"category" validate:"required,oneof=academic emotional relationship family trauma other"`
	Urgency     model.Urgency  `json:"urgency" validate:"omitempty,oneof=low medium high emergency"`
	IsAnonymous bool           `json:"is_anonymous"`
	Message     string         `json:"message" validate:"required,max=5000"`
}

// UpdateConversationRequest changes status, urgency or assignment.
type UpdateConversationRequest struct {
	Status     *model.ConversationStatus `json:"status" validate:"omitempty,oneof=new in_progress resolved closed"`
	Urgency    *model.Urgency            `json:"urgency" validate:"omitempty,oneof=low medium high emergency"`
	AssignedTo *string                   `json:"assigned_to" validate:"omitempty,uuid"`
}

func statusQuery(c echo.Context) (model.ConversationStatus, error) {
	status := model.ConversationStatus(c.QueryParam("status"))
	if status != "" && !status.Valid() {
		return "", badRequest("invalid status", "VALIDATION_ERROR")
	}
	return status, nil
}

// Create godoc
// @Summary Start a conversation (student)
// @Tags conversations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateConversationRequest true "Conversation data"
// @Success 201 {object} model.Conversation
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /conversations [post]
func (h *ConversationHandler) Create(c echo.Context) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	var req CreateConversationRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	conv, err := h.svc.Create(c.Request().Context(), who, service.CreateConversationInput{
		Category:    req.Category,
		Urgency:     req.Urgency,
		IsAnonymous: req.IsAnonymous,
		Content:     req.Message,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, conv)
}

// List godoc
// @Summary List conversations visible to the caller
// @Description Students see their own; counselors see unassigned ones and their own caseload; admins see all.
// @Tags conversations
// @Produce json
// @Security BearerAuth
// @Param status query string false "Status" Enums(new, in_progress, resolved, closed)
// @Param urgency query string false "Urgency" Enums(low, medium, high, emergency)
// @Param category query string false "Category"
// @Param assigned_to query string false "Counselor ID"
// @Success 200 {array} model.Conversation
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /conversations [get]
func (h *ConversationHandler) List(c echo.Context) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	status, err := statusQuery(c)
	if err != nil {
		return err
	}
	urgency := model.Urgency(c.QueryParam("urgency"))
	if urgency != "" && !urgency.Valid() {
		return badRequest("invalid urgency", "VALIDATION_ERROR")
	}
	category := model.Category(c.QueryParam("category"))
	if category != "" && !category.Valid() {
		return badRequest("invalid category", "VALIDATION_ERROR")
	}
	assignedTo, err := optionalUUIDQuery(c, "assigned_to")
	if err != nil {
		return err
	}

	convs, err := h.svc.List(c.Request().Context(), who, service.ConversationQuery{
		Status:     status,
		Urgency:    urgency,
		Category:   category,
		AssignedTo: assignedTo,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, convs)
}

// PriorityQueue godoc
// @Summary Open conversations ranked by urgency, then age
// @Tags conversations
// @Produce json
// @Security BearerAuth
// @Param status query string false "Status; defaults to new and in_progress" Enums(new, in_progress, resolved, closed)
// @Param assigned_to query string false "Counselor ID"
// @Success 200 {array} model.Conversation
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /conversations/priority-queue [get]
func (h *ConversationHandler) PriorityQueue(c echo.Context) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	status, err := statusQuery(c)
	if err != nil {
		return err
	}
	assignedTo, err := optionalUUIDQuery(c, "assigned_to")
	if err != nil {
		return err
	}

	convs, err := h.svc.PriorityQueue(c.Request().Context(), who, status, assignedTo)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, convs)
}

// Statistics godoc
// @Summary Conversation counts visible to the caller
// @Tags conversations
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.Statistics
// @Failure 401 {object} errors.ErrorResponse
// @Router /conversations/statistics [get]
func (h *ConversationHandler) Statistics(c echo.Context) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	stats, err := h.svc.Statistics(c.Request().Context(), who)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

// Get godoc
// @Summary Get a conversation with its messages
// @Tags conversations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Success 200 {object} model.Conversation
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /conversations/{id} [get]
func (h *ConversationHandler) Get(c echo.Context) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	conv, err := h.svc.Get(c.Request().Context(), who, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, conv)
}

// Update godoc
// @Summary Update status, urgency or assignment
// @Tags conversations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Param request body UpdateConversationRequest true "Fields to change"
// @Success 200 {object} model.Conversation
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /conversations/{id} [patch]
func (h *ConversationHandler) Update(c echo.Context) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var req UpdateConversationRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	in := service.ConversationUpdate{Status: req.Status, Urgency: req.Urgency}
	if req.AssignedTo != nil {
		counselorID := uuid.MustParse(*req.AssignedTo)
		in.AssignedTo = &counselorID
	}
	conv, err := h.svc.Update(c.Request().Context(), who, id, in)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, conv)
}

// Assign godoc
// @Summary Assign a conversation to a counselor
// @Tags conversations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Param counselorId path string true "Counselor ID"
// @Success 200 {object} model.Conversation
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /conversations/{id}/assign/{counselorId} [patch]
func (h *ConversationHandler) Assign(c echo.Context) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	counselorID, err := uuidParam(c, "counselorId")
	if err != nil {
		return err
	}
	conv, err := h.svc.Assign(c.Request().Context(), who, id, counselorID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, conv)
}

// ToggleAnonymity godoc
// @Summary Flip the anonymity of an own conversation (student)
// @Tags conversations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Success 200 {object} model.Conversation
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /conversations/{id}/toggle-anonymity [patch]
func (h *ConversationHandler) ToggleAnonymity(c echo.Context) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	conv, err := h.svc.ToggleAnonymity(c.Request().Context(), who, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, conv)
}
