package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/webshop/internal/domain/auth"
	"github.com/xenking/webshop/internal/domain/user"
)

type signInRequest struct {
	Email    string
	Password string
}

func (req *signInRequest) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "email":
			req.Email, err = d.Str()
		case "password":
			req.Password, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
}

type createUserRequest struct {
	Email    string
	Password string
	Name     string
}

func (req *createUserRequest) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "email":
			req.Email, err = d.Str()
		case "password":
			req.Password, err = d.Str()
		case "name":
			req.Name, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
}

type updateUserRequest struct {
	ID       string
	Name     *string
	Password *string
}

func (req *updateUserRequest) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			req.ID, err = d.Str()
		case "name":
			req.Name, err = decodeOptStr(d)
		case "password":
			req.Password, err = decodeOptStr(d)
		default:
			err = d.Skip()
		}
		return err
	})
}

type idRequest struct {
	ID string
}

func (req *idRequest) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		if key != "id" {
			return d.Skip()
		}
		var err error
		req.ID, err = d.Str()
		return err
	})
}

func encodeUser(e *jx.Encoder, u *user.User) {
	e.Obj(func(e *jx.Encoder) {
		field(e, "id", u.ID)
		field(e, "email", u.Email)
		field(e, "name", u.Name)
		field(e, "role", string(u.Role))
		timeField(e, "createdAt", u.CreatedAt)
		timeField(e, "updatedAt", u.UpdatedAt)
	})
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			field(e, "token", res.Token)
			timeField(e, "expiresAt", res.ExpiresAt)
			e.Field("user", func(e *jx.Encoder) { encodeUser(e, res.User) })
		})
	})
}

func (h *Handler) signOut(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.SignOut(r.Context(), bearerToken(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := h.users.Register(r.Context(), user.RegisterRequest{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeUser(e, u) })
}

// getUser returns the caller, or the user named by ?id= when allowed.
func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.Get(r.Context(), auth.VerdictFrom(r.Context()), r.URL.Query().Get("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeUser(e, u) })
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context(), auth.VerdictFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range users {
				encodeUser(e, &users[i])
			}
		})
	})
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := h.users.UpdateProfile(r.Context(), auth.VerdictFrom(r.Context()), req.ID, user.ProfileUpdate{
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeUser(e, u) })
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if err := readOptionalJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.users.Delete(r.Context(), auth.VerdictFrom(r.Context()), req.ID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
