package api

import (
	"fmt"
	"net/http"

	"github.com/kalambet/sonarchat/internal/conversation"
	"github.com/kalambet/sonarchat/internal/session"
)

// currentAlias may be used in place of a conversation id.
const currentAlias = "current"

type conversationList struct {
	CurrentID     string            `json:"current_id"`
	Conversations []session.Summary `json:"conversations"`
}

func newConversationList(st *session.State) conversationList {
	return conversationList{CurrentID: st.CurrentID, Conversations: st.Summaries()}
}

func conversationID(r *http.Request, st *session.State) string {
	id := pathParam(r, "id")
	if id == currentAlias {
		return st.CurrentID
	}
	return id
}

func handleListConversations(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var list conversationList
		sessionFrom(r).Do(func(st *session.State) error {
			list = newConversationList(st)
			return nil
		})
		writeJSON(w, http.StatusOK, list)
	}
}

func handleNewConversation(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var conv conversation.Conversation
		sessionFrom(r).Do(func(st *session.State) error {
			deps.Sessions.Controller().NewConversation(r.Context(), st)
			conv = *st.Current()
			return nil
		})
		writeJSON(w, http.StatusCreated, conv)
	}
}

func handleGetConversation(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var conv conversation.Conversation
		err := sessionFrom(r).Do(func(st *session.State) error {
			id := conversationID(r, st)
			i := conversation.Find(st.Conversations, id)
			if i < 0 {
				return unknownConversation(id)
			}
			conv = st.Conversations[i]
			return nil
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, conv)
	}
}

func handleDeleteConversation(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var list conversationList
		err := sessionFrom(r).Do(func(st *session.State) error {
			if err := deps.Sessions.Controller().DeleteConversation(r.Context(), st, conversationID(r, st)); err != nil {
				return err
			}
			list = newConversationList(st)
			return nil
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func handleSelectConversation(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var conv conversation.Conversation
		err := sessionFrom(r).Do(func(st *session.State) error {
			if err := deps.Sessions.Controller().SelectConversation(st, conversationID(r, st)); err != nil {
				return err
			}
			conv = *st.Current()
			return nil
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, conv)
	}
}

func handleClearConversation(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var conv conversation.Conversation
		sessionFrom(r).Do(func(st *session.State) error {
			deps.Sessions.Controller().ClearConversation(r.Context(), st)
			conv = *st.Current()
			return nil
		})
		writeJSON(w, http.StatusOK, conv)
	}
}

func unknownConversation(id string) error {
	return fmt.Errorf("%w: %q", session.ErrUnknownConversation, id)
}
