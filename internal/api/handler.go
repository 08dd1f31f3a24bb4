package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/yakoovad/hackathon-registration/internal/auth"
	"github.com/yakoovad/hackathon-registration/internal/model"
	"github.com/yakoovad/hackathon-registration/internal/pubsub"
	"github.com/yakoovad/hackathon-registration/internal/repository"
	"github.com/yakoovad/hackathon-registration/internal/service"
	"github.com/yakoovad/hackathon-registration/pkg/logger"
	"go.uber.org/zap"
)

type Handler struct {
	registration *service.RegistrationService
	checkin      *service.CheckInService
	teams        *service.TeamService

	admin *auth.Manager
	bus   *pubsub.Bus

	healthChecker HealthChecker

	logger *zap.Logger
}

func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{
		logger: logger,
	}
}

func (h *Handler) WithHealthChecker(c HealthChecker) *Handler {
	h.healthChecker = c
	return h
}

func (h *Handler) WithRegistrationService(s *service.RegistrationService) *Handler {
	h.registration = s
	return h
}

func (h *Handler) WithCheckInService(s *service.CheckInService) *Handler {
	h.checkin = s
	return h
}

func (h *Handler) WithTeamService(s *service.TeamService) *Handler {
	h.teams = s
	return h
}

func (h *Handler) WithAdminAuth(m *auth.Manager) *Handler {
	h.admin = m
	return h
}

func (h *Handler) WithBus(b *pubsub.Bus) *Handler {
	h.bus = b
	return h
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.Validator = NewValidator()
	e.Use(middleware.RequestID())
	e.Use(ZapLoggerMiddleware(h.logger))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.GET("/health", h.healthChecker.HealthCheck())

	api := e.Group("/api")

	api.POST("/register", h.Register)
	api.POST("/verify-otp", h.VerifyOTP)

	api.GET("/team/by-code/:team_code", h.GetTeamByCode)
	api.GET("/team/:team_id", h.GetTeamByID)

	api.POST("/attendance/checkin", h.CheckIn)
	api.POST("/attendance/scan", h.Scan)

	api.GET("/download/id-cards", h.DownloadIDCards)
	api.GET("/stats", h.Stats)
	api.GET("/stats/stream", h.StatsStream)

	api.POST("/admin/login", h.AdminLogin)

	adminSecurity := api.Group("/admin", AdminAuthMiddleware(h.admin))
	adminSecurity.GET("/teams", h.AdminTeams)
}

func (h *Handler) Register(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	req := &model.Registration{}
	if err := h.decodeRequest(e, req); err != nil {
		l.Warn("invalid register request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	l.Info("registration requested",
		zap.String("team_name", req.TeamName),
		zap.String("leader_email", req.LeaderEmail))

	res, err := h.registration.Register(e.Request().Context(), req)
	if err != nil {
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, res)
}

func (h *Handler) VerifyOTP(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	req := &model.VerifyOTPRequest{}
	if err := h.decodeRequest(e, req); err != nil {
		l.Warn("invalid verify-otp request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	l.Info("otp verification requested", zap.String("leader_email", req.LeaderEmail))

	view, err := h.registration.VerifyOTP(e.Request().Context(), req.LeaderEmail, req.OTP)
	if err != nil {
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, view)
}

func (h *Handler) GetTeamByCode(e echo.Context) error {
	teamCode := e.Param("team_code")

	team, err := h.teams.GetByCode(e.Request().Context(), teamCode)
	if err != nil {
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, team)
}

func (h *Handler) GetTeamByID(e echo.Context) error {
	teamID := e.Param("team_id")

	team, err := h.teams.GetByTeamID(e.Request().Context(), teamID)
	if err != nil {
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, team)
}

func (h *Handler) CheckIn(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var req struct {
		TeamID string `json:"team_id" validate:"required"`
	}

	if err := h.decodeRequest(e, &req); err != nil {
		l.Warn("invalid check-in request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	res, err := h.checkin.Manual(e.Request().Context(), req.TeamID)
	if err != nil {
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"status":        res.Status,
		"team_id":       res.TeamID,
		"attendance":    res.Attendance,
		"check_in_time": res.CheckInTime,
		"participant":   res.Participant,
	})
}

func (h *Handler) Scan(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var req struct {
		QRData string `json:"qr_data" validate:"required"`
	}

	if err := h.decodeRequest(e, &req); err != nil {
		l.Warn("invalid scan request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	res, err := h.checkin.Scan(e.Request().Context(), req.QRData)
	if err != nil {
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, res)
}

func (h *Handler) DownloadIDCards(e echo.Context) error {
	teamID := e.QueryParam("team_id")
	key := e.QueryParam("key")

	if teamID == "" || key == "" {
		return h.transportError(e, service.NewError(service.ErrorCodeValidation, "team_id and key are required"))
	}

	path, err := h.teams.Download(e.Request().Context(), teamID, key)
	if err != nil {
		return h.transportError(e, err)
	}

	return e.Attachment(path, teamID+"_id_cards.pdf")
}

func (h *Handler) Stats(e echo.Context) error {
	stats, err := h.teams.Stats(e.Request().Context())
	if err != nil {
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, stats)
}

// StatsStream pushes check-in events to dashboards as server-sent events.
func (h *Handler) StatsStream(e echo.Context) error {
	res := e.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	events, cancel := h.bus.Subscribe()
	defer cancel()

	ctx := e.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			payload, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(res, "event: checkin\ndata: %s\n\n", payload); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}

func (h *Handler) AdminLogin(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var req struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	if err := h.decodeRequest(e, &req); err != nil {
		return h.transportError(e, err)
	}

	token, err := h.admin.Login(req.Username, req.Password)
	if err != nil {
		l.Warn("admin login refused", zap.String("username", req.Username))
		return h.transportError(e, service.NewError(service.ErrorCodeUnauthorized, "invalid credentials"))
	}

	return e.JSON(http.StatusOK, map[string]string{"access_token": token})
}

func (h *Handler) AdminTeams(e echo.Context) error {
	params := repository.ListParams{
		Page:     intQuery(e, "page", 1),
		PageSize: intQuery(e, "page_size", 50),
		Search:   e.QueryParam("search"),
		Domain:   e.QueryParam("domain"),
	}

	list, err := h.teams.List(e.Request().Context(), params)
	if err != nil {
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, list)
}

func (h *Handler) decodeRequest(e echo.Context, req any) *service.Error {
	if err := e.Bind(req); err != nil {
		return service.NewError(service.ErrorCodeValidation, "invalid request body")
	}

	if err := e.Validate(req); err != nil {
		if svcErr, ok := err.(*service.Error); ok {
			return svcErr
		}
		return service.NewError(service.ErrorCodeValidation, "request validation failed")
	}
	return nil
}

func (h *Handler) transportError(e echo.Context, err *service.Error) error {
	response := struct {
		Error *service.Error `json:"error"`
	}{Error: err}

	switch err.Code {
	case service.ErrorCodeValidation, service.ErrorCodeOTPInvalid,
		service.ErrorCodeAlreadyCheckedIn, service.ErrorCodeInvalidPayload:
		return e.JSON(http.StatusBadRequest, response)
	case service.ErrorCodeUnauthorized:
		return e.JSON(http.StatusUnauthorized, response)
	case service.ErrorCodeNotFound:
		return e.JSON(http.StatusNotFound, response)
	case service.ErrorCodeEmailRegistered:
		return e.JSON(http.StatusConflict, response)
	case service.ErrorCodeOTPExpired, service.ErrorCodeRegistrationExpired:
		return e.JSON(http.StatusGone, response)
	case service.ErrorCodeRateLimited:
		return e.JSON(http.StatusTooManyRequests, response)
	default:
		// Internal details stay in the logs; the client gets a correlation
		// id to quote at the operators.
		correlationID := uuid.NewString()
		logger.FromContext(e.Request().Context()).Error("internal error surfaced",
			zap.String("correlation_id", correlationID),
			zap.String("code", string(err.Code)),
			zap.String("message", err.Message))
		return e.JSON(http.StatusInternalServerError, struct {
			Error *service.Error `json:"error"`
		}{Error: service.NewError(err.Code, "internal error").
			WithDetail("correlation_id", correlationID)})
	}
}

func intQuery(e echo.Context, name string, def int) int {
	raw := e.QueryParam(name)
	if raw == "" {
		return def
	}
	var v int
	if _, err := fmt.Sscanf(raw, "%d", &v); err != nil || v < 1 {
		return def
	}
	return v
}
