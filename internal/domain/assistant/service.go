package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicbook/clinicbook/internal/platform/auth"
	"github.com/clinicbook/clinicbook/internal/platform/telemetry"
)

const (
	serviceName      = "AI Medical Assistant"
	maxMessageLength = 4000
	placeholderKey   = "YOUR_API_KEY_HERE"
)

var (
	ErrInvalid       = errors.New("invalid input")
	ErrNotConfigured = errors.New("assistant: API key not configured")
	ErrBlocked       = errors.New("response blocked by SAFETY filter")
)

// Error kinds reported by ChatError.
const (
	KindNotConfigured = "not_configured"
	KindAPIKey        = "api_key"
	KindQuota         = "quota"
	KindSafety        = "safety"
	KindUnavailable   = "error"
)

// ChatError carries a user-facing message for a failed completion.
type ChatError struct {
	Kind    string
	Message string
	Err     error
}

func (e *ChatError) Error() string { return e.Message + ": " + e.Err.Error() }
func (e *ChatError) Unwrap() error { return e.Err }

// Classify maps a model failure to the message shown to the patient.
func Classify(err error) *ChatError {
	msg := err.Error()
	switch {
	case errors.Is(err, ErrNotConfigured):
		return &ChatError{Kind: KindNotConfigured, Err: err,
			Message: "Trợ lý AI chưa được cấu hình. Vui lòng đặt GEMINI_API_KEY và khởi động lại máy chủ."}
	case strings.Contains(msg, "API key"):
		return &ChatError{Kind: KindAPIKey, Err: err,
			Message: "API key không hợp lệ. Vui lòng kiểm tra lại GEMINI_API_KEY."}
	case strings.Contains(msg, "quota"):
		return &ChatError{Kind: KindQuota, Err: err,
			Message: "Trợ lý AI đã hết hạn mức sử dụng. Vui lòng thử lại sau."}
	case errors.Is(err, ErrBlocked) || strings.Contains(msg, "SAFETY"):
		return &ChatError{Kind: KindSafety, Err: err,
			Message: "Nội dung không phù hợp. Vui lòng thử câu hỏi khác."}
	default:
		return &ChatError{Kind: KindUnavailable, Err: err,
			Message: "Không thể kết nối với trợ lý AI. Vui lòng thử lại sau."}
	}
}

// KeyConfigured reports whether key looks like a real API key.
func KeyConfigured(key string) bool {
	key = strings.TrimSpace(key)
	return key != "" && key != placeholderKey
}

type Service struct {
	llm     LLMClient
	loader  ContextLoader
	model   string
	logger  zerolog.Logger
	metrics *telemetry.Metrics
	now     func() time.Time
}

// NewService builds the assistant. A nil llm leaves the service reachable
// but every chat fails with ErrNotConfigured. A nil loader disables
// server-side context.
func NewService(llm LLMClient, loader ContextLoader, model string, logger zerolog.Logger, metrics *telemetry.Metrics) *Service {
	if model == "" {
		model = DefaultModel
	}
	return &Service{llm: llm, loader: loader, model: model, logger: logger, metrics: metrics, now: time.Now}
}

func (s *Service) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, fmt.Errorf("%w: message is required", ErrInvalid)
	}
	if len([]rune(message)) > maxMessageLength {
		return nil, fmt.Errorf("%w: message must be at most %d characters", ErrInvalid, maxMessageLength)
	}
	if s.llm == nil {
		s.metrics.ObserveAssistant(KindNotConfigured)
		return nil, Classify(ErrNotConfigured)
	}

	cc := req.Context
	if cc == nil {
		cc = s.sessionContext(ctx)
	}

	resp, err := s.llm.Complete(ctx, defaultRequest(BuildPrompt(message, cc)))
	if err != nil {
		ce := Classify(err)
		s.metrics.ObserveAssistant(ce.Kind)
		s.logger.Error().Err(err).Str("kind", ce.Kind).Msg("assistant completion failed")
		return nil, ce
	}
	s.metrics.ObserveAssistant("ok")

	text := resp.Text
	if text == "" {
		text = "No response generated"
	}
	return &ChatResponse{Success: true, Response: text, Timestamp: s.now().UTC()}, nil
}

// sessionContext loads stored context for an authenticated patient. Failures
// fall back to a context-free prompt.
func (s *Service) sessionContext(ctx context.Context) *ChatContext {
	if s.loader == nil {
		return nil
	}
	sess, ok := auth.SessionFromContext(ctx)
	if !ok || !sess.IsPatient() {
		return nil
	}
	patientID, err := uuid.Parse(sess.PatientID)
	if err != nil {
		return nil
	}
	cc, err := s.loader.Load(ctx, patientID)
	if err != nil {
		s.logger.Warn().Err(err).Str("patient_id", sess.PatientID).Msg("assistant context load failed")
		return nil
	}
	return cc
}

func (s *Service) Health() Health {
	h := Health{Service: serviceName, Model: s.model, Timestamp: s.now().UTC()}
	if s.llm != nil {
		h.Status = "ok"
		h.APIKeyConfigured = true
		h.Message = "Service is ready"
	} else {
		h.Status = "error"
		h.Message = "GEMINI_API_KEY not configured. Set it and restart the server"
	}
	return h
}
