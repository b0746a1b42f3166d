package ctx_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "github.com/rrnagar/marketplace/pkg/ctx"
	"github.com/rrnagar/marketplace/pkg/middleware"
	"github.com/rrnagar/marketplace/pkg/response"
)

type envelope struct {
	Status  int               `json:"status"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Errors  map[string]string `json:"errors"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func TestSuccessEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	appctx.Wrap(func(c *appctx.Context) {
		c.Success(map[string]any{"id": 1})
	})(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decode(t, rec)
	assert.Equal(t, 200, env.Status)
	assert.JSONEq(t, `{"id":1}`, string(env.Data))
}

func TestBindJSON(t *testing.T) {
	type input struct {
		ProductID uint `json:"product_id" validate:"required"`
		Qty       int  `json:"qty"        validate:"required,gte=1"`
	}

	t.Run("valid", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"product_id":3,"qty":2}`))
		appctx.Wrap(func(c *appctx.Context) {
			var in input
			require.True(t, c.BindJSON(&in))
			assert.Equal(t, 2, in.Qty)
			c.Created(in)
		})(rec, req)
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("validation failure is 422", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"product_id":3}`))
		appctx.Wrap(func(c *appctx.Context) {
			var in input
			assert.False(t, c.BindJSON(&in))
		})(rec, req)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, decode(t, rec).Errors, "qty")
	})

	t.Run("malformed json is 400", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"product_id":`))
		appctx.Wrap(func(c *appctx.Context) {
			var in input
			assert.False(t, c.BindJSON(&in))
		})(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestParamUint(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/orders/{id}", appctx.Wrap(func(c *appctx.Context) {
		id, ok := c.ParamUint("id")
		if !ok {
			c.NotFound()
			return
		}
		c.Success(id)
	}))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/42", nil))
	assert.Equal(t, "42", string(decode(t, rec).Data))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/abc", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPageDefaultsAndCap(t *testing.T) {
	rec := httptest.NewRecorder()
	appctx.Wrap(func(c *appctx.Context) {
		page, per := c.Page()
		assert.Equal(t, 1, page)
		assert.Equal(t, 100, per)
		c.Paginated([]int{}, response.NewPagination(page, per, 250))
	})(rec, httptest.NewRequest(http.MethodGet, "/?page=0&per_page=500", nil))

	var body struct {
		Data struct {
			Pagination response.Pagination `json:"pagination"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Data.Pagination.LastPage)
}

func TestPrincipal(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(middleware.WithPrincipal(req.Context(), 9, "supplier", "token"))

	appctx.Wrap(func(c *appctx.Context) {
		assert.Equal(t, uint(9), c.UserID())
		assert.Equal(t, "supplier", c.Role())
		c.Success(nil)
	})(rec, req)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "1.2.3.4, 10.0.0.1")
	appctx.Wrap(func(c *appctx.Context) {
		assert.Equal(t, "1.2.3.4", c.ClientIP())
	})(httptest.NewRecorder(), req)
}
