package api

import (
	"net/http"

	"github.com/kalambet/sonarchat/internal/instructions"
	"github.com/kalambet/sonarchat/internal/session"
)

type instructionView struct {
	Name      string `json:"name"`
	Content   string `json:"content"`
	Deletable bool   `json:"deletable"`
}

type instructionList struct {
	Active   string            `json:"active"`
	Profiles []instructionView `json:"profiles"`
}

func newInstructionList(set *instructions.Set) instructionList {
	list := instructionList{Active: set.Active().Name}
	for _, p := range set.Profiles() {
		list.Profiles = append(list.Profiles, instructionView{
			Name:      p.Name,
			Content:   p.Content,
			Deletable: p.Name != instructions.DefaultName,
		})
	}
	return list
}

type instructionRequest struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// instructionOp runs op against the session and answers with the updated list.
func instructionOp(w http.ResponseWriter, r *http.Request, code int, op func(*session.State) error) {
	var list instructionList
	err := sessionFrom(r).Do(func(st *session.State) error {
		if err := op(st); err != nil {
			return err
		}
		list = newInstructionList(st.Instructions)
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, code, list)
}

func handleListInstructions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		instructionOp(w, r, http.StatusOK, func(*session.State) error { return nil })
	}
}

func handleCreateInstruction(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req instructionRequest
		if !decodeBody(w, r, &req) {
			return
		}
		instructionOp(w, r, http.StatusCreated, func(st *session.State) error {
			return deps.Sessions.Controller().CreateInstruction(r.Context(), st, req.Name, req.Content)
		})
	}
}

func handleUpdateInstruction(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req instructionRequest
		if !decodeBody(w, r, &req) {
			return
		}
		name := pathParam(r, "name")
		instructionOp(w, r, http.StatusOK, func(st *session.State) error {
			return deps.Sessions.Controller().UpdateInstruction(r.Context(), st, name, req.Content)
		})
	}
}

func handleDeleteInstruction(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := pathParam(r, "name")
		instructionOp(w, r, http.StatusOK, func(st *session.State) error {
			return deps.Sessions.Controller().DeleteInstruction(r.Context(), st, name)
		})
	}
}

func handleSelectInstruction(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := pathParam(r, "name")
		instructionOp(w, r, http.StatusOK, func(st *session.State) error {
			return deps.Sessions.Controller().SelectInstruction(r.Context(), st, name)
		})
	}
}
