package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/jx"

	"github.com/xenking/webshop/internal/domain/article"
	"github.com/xenking/webshop/internal/domain/fault"
)

type rateArticleRequest struct {
	ArticleID string
	Rating    int
}

func (req *rateArticleRequest) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "articleId", "id":
			req.ArticleID, err = d.Str()
		case "rating":
			req.Rating, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	})
}

func encodeArticle(e *jx.Encoder, a *article.Article) {
	e.Obj(func(e *jx.Encoder) {
		field(e, "id", a.ID)
		field(e, "name", a.Name)
		field(e, "description", a.Description)
		moneyField(e, "price", a.Price)
		e.Field("rating", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				intField(e, "count", a.Rating.Count)
				moneyField(e, "average", a.Rating.Average())
			})
		})
		timeField(e, "createdAt", a.CreatedAt)
	})
}

func writeArticles(w http.ResponseWriter, articles []article.Article) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range articles {
				encodeArticle(e, &articles[i])
			}
		})
	})
}

func (h *Handler) getArticle(w http.ResponseWriter, r *http.Request) {
	a, err := h.articles.Get(r.Context(), r.URL.Query().Get("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeArticle(e, a) })
}

func (h *Handler) listArticles(w http.ResponseWriter, r *http.Request) {
	all, err := h.articles.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeArticles(w, all)
}

func (h *Handler) latestArticles(w http.ResponseWriter, r *http.Request) {
	var limit int
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, fault.Invalid("limit %q is not a number", raw))
			return
		}
		if n == 0 {
			n = -1
		}
		limit = n
	}
	latest, err := h.articles.Latest(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeArticles(w, latest)
}

func (h *Handler) rateArticle(w http.ResponseWriter, r *http.Request) {
	var req rateArticleRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.articles.Rate(r.Context(), req.ArticleID, req.Rating)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeArticle(e, a) })
}
