package api

import (
	"net/http"

	"github.com/kalambet/sonarchat/internal/conversation"
	"github.com/kalambet/sonarchat/internal/llm"
	"github.com/kalambet/sonarchat/internal/session"
)

type model struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
}

type modelList struct {
	Object  string  `json:"object"`
	Data    []model `json:"data"`
	Default string  `json:"default"`
}

func handleModels(w http.ResponseWriter, r *http.Request) {
	list := modelList{Object: "list", Default: llm.DefaultModel}
	for _, m := range llm.Models {
		list.Data = append(list.Data, model{ID: m, Object: "model", OwnedBy: "perplexity"})
	}
	writeJSON(w, http.StatusOK, list)
}

type sessionView struct {
	Identity          string            `json:"identity"`
	IdentitySource    string            `json:"identity_source"`
	Authenticated     bool              `json:"authenticated"`
	Model             string            `json:"model"`
	CurrentID         string            `json:"current_id"`
	ActiveInstruction string            `json:"active_instruction"`
	Conversations     []session.Summary `json:"conversations"`
}

func newSessionView(st *session.State) sessionView {
	return sessionView{
		Identity:          string(st.Identity),
		IdentitySource:    st.IdentitySource.String(),
		Authenticated:     st.Authenticated,
		Model:             st.Model,
		CurrentID:         st.CurrentID,
		ActiveInstruction: st.Instructions.Active().Name,
		Conversations:     st.Summaries(),
	}
}

func handleSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var view sessionView
		sessionFrom(r).Do(func(st *session.State) error {
			view = newSessionView(st)
			return nil
		})
		writeJSON(w, http.StatusOK, view)
	}
}

type sendRequest struct {
	Text string `json:"text"`
}

type sendResponse struct {
	Reply        string                    `json:"reply"`
	Conversation conversation.Conversation `json:"conversation"`
}

func handleSendMessage(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sendRequest
		if !decodeBody(w, r, &req) {
			return
		}

		var resp sendResponse
		err := sessionFrom(r).Do(func(st *session.State) error {
			reply, err := deps.Sessions.Controller().Send(r.Context(), st, req.Text)
			if err != nil {
				return err
			}
			resp = sendResponse{Reply: reply, Conversation: *st.Current()}
			return nil
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type modelRequest struct {
	Model string `json:"model"`
}

func handleSetModel(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req modelRequest
		if !decodeBody(w, r, &req) {
			return
		}

		err := sessionFrom(r).Do(func(st *session.State) error {
			return deps.Sessions.Controller().SetModel(st, req.Model)
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, modelRequest{Model: req.Model})
	}
}
