package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"toko-builder/internal/advisor"
	"toko-builder/internal/convo"
	"toko-builder/internal/support"
)

type chatSendRequest struct {
	Text       string `json:"text"`
	Attachment *struct {
		Filename   string `json:"filename"`
		MIMEType   string `json:"mimeType"`
		Data       []byte `json:"data"`
		PreviewURL string `json:"previewUrl"`
	} `json:"attachment"`
}

func (s *Server) handleChatSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req chatSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body tidak valid"})
		return
	}
	if req.Text == "" && req.Attachment == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "pesan kosong"})
		return
	}

	var att *convo.Attachment
	if req.Attachment != nil {
		att = &convo.Attachment{
			Filename:   req.Attachment.Filename,
			MIMEType:   req.Attachment.MIMEType,
			Data:       req.Attachment.Data,
			PreviewURL: req.Attachment.PreviewURL,
		}
	}

	res, err := s.deps.Engine.Submit(r.Context(), req.Text, att)
	if err != nil {
		if errors.Is(err, convo.ErrTurnInProgress) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "masih memproses pesan sebelumnya"})
			return
		}
		s.logger.Error("chat send failed", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": s.deps.Engine.LastError()})
		return
	}

	s.tickAdvisor(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"userMessage": res.UserMessage,
		"aiMessage":   res.AIMessage,
		"config":      res.Configuration,
	})
}

type chatActionRequest struct {
	ActionID string `json:"actionId"`
	Value    string `json:"value"`
}

func (s *Server) handleChatAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req chatActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ActionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "actionId wajib diisi"})
		return
	}

	switch req.ActionID {
	case advisor.ActionDismissTip:
		if s.deps.Advisor != nil {
			s.deps.Advisor.Dismiss(r.Context(), req.Value)
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	case advisor.ActionDisableTips:
		if s.deps.Advisor != nil {
			s.deps.Advisor.DisableAll(r.Context())
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	res, err := s.deps.Engine.Dispatch(r.Context(), req.ActionID, req.Value)
	if err != nil {
		if errors.Is(err, convo.ErrTurnInProgress) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "masih memproses pesan sebelumnya"})
			return
		}
		s.logger.Error("chat action failed", "action_id", req.ActionID, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": s.deps.Engine.LastError()})
		return
	}

	s.tickAdvisor(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"aiMessage": res.AIMessage,
		"config":    res.Configuration,
	})
}

type chatSelectRequest struct {
	Section string `json:"section"`
}

func (s *Server) handleChatSelect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req chatSelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body tidak valid"})
		return
	}

	s.deps.Engine.Select(req.Section)
	s.tickAdvisor(r)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleChatMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	busy, operation := s.deps.Engine.Busy()
	writeJSON(w, http.StatusOK, map[string]any{
		"messages":  s.deps.Engine.Messages(),
		"busy":      busy,
		"operation": operation,
	})
}

func (s *Server) handleChatStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	busy, operation := s.deps.Engine.Busy()
	writeJSON(w, http.StatusOK, map[string]any{
		"busy":      busy,
		"operation": operation,
		"lastError": s.deps.Engine.LastError(),
		"selection": s.deps.Engine.Selection(),
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.State.Snapshot())
}

type supportMessageRequest struct {
	ConversationID string `json:"conversationId"`
	Text           string `json:"text"`
	Sender         string `json:"sender"`
	CustomerName   string `json:"customerName"`
}

func (s *Server) handleSupportMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req supportMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "pesan kosong"})
		return
	}

	convID, err := s.deps.Router.Route(r.Context(), req.ConversationID, req.Text, req.Sender, req.CustomerName)
	if err != nil {
		if errors.Is(err, support.ErrNoConversationSelected) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Pilih percakapan dulu ya."})
			return
		}
		s.logger.Error("support route failed", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "pesan tidak bisa diproses"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"conversationId": convID})
}

type supportReadRequest struct {
	ConversationID string `json:"conversationId"`
}

func (s *Server) handleSupportRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req supportReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ConversationID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "conversationId wajib diisi"})
		return
	}
	s.deps.Router.MarkRead(req.ConversationID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type supportAIAssistRequest struct {
	ConversationID string `json:"conversationId"`
	Enabled        bool   `json:"enabled"`
}

func (s *Server) handleSupportAIAssist(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req supportAIAssistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ConversationID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "conversationId wajib diisi"})
		return
	}
	s.deps.Router.SetAIAssist(req.ConversationID, req.Enabled)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSupportConversations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversations": s.deps.State.Snapshot().SupportConversations,
		"ownerNotice":   s.deps.Router.LastNotice(),
	})
}

// tickAdvisor runs one advisory evaluation after a state-changing request.
func (s *Server) tickAdvisor(r *http.Request) {
	if s.deps.Advisor == nil {
		return
	}
	s.deps.Advisor.Tick(r.Context(), s.deps.State.Snapshot(), s.deps.Engine.Selection())
}
