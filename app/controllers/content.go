package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/rrnagar/marketplace/app/services"
	"github.com/rrnagar/marketplace/config"
	"github.com/rrnagar/marketplace/pkg/ctx"
)

type ContentController struct {
	svc *services.Services
}

func NewContentController(svc *services.Services) *ContentController {
	return &ContentController{svc: svc}
}

// Blogs

func (cc *ContentController) Blogs(c *ctx.Context) {
	page, perPage := c.Page()
	items, p, err := cc.svc.Content.PublishedBlogs(c.Context(), page, perPage)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Paginated(items, p)
}

func (cc *ContentController) Blog(c *ctx.Context) {
	b, err := cc.svc.Content.BlogBySlug(c.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Success(b)
}

func (cc *ContentController) AdminBlogs(c *ctx.Context) {
	page, perPage := c.Page()
	items, p, err := cc.svc.Content.Blogs(c.Context(), page, perPage)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Paginated(items, p)
}

func (cc *ContentController) CreateBlog(c *ctx.Context) {
	var in services.BlogInput
	if !c.BindJSON(&in) {
		return
	}
	b, err := cc.svc.Content.CreateBlog(c.Context(), c.UserID(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Created(b)
}

func (cc *ContentController) UpdateBlog(c *ctx.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in services.BlogInput
	if !c.BindJSON(&in) {
		return
	}
	b, err := cc.svc.Content.UpdateBlog(c.Context(), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Success(b)
}

func (cc *ContentController) DeleteBlog(c *ctx.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := cc.svc.Content.DeleteBlog(c.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Success(message("Blog deleted."))
}

// Ads

func (cc *ContentController) Ads(c *ctx.Context) {
	ads, err := cc.svc.Content.ActiveAds(c.Context(), time.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.Success(ads)
}

func (cc *ContentController) AdminAds(c *ctx.Context) {
	page, perPage := c.Page()
	items, p, err := cc.svc.Content.Ads(c.Context(), page, perPage)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Paginated(items, p)
}

func (cc *ContentController) CreateAd(c *ctx.Context) {
	var in services.AdInput
	if !c.BindJSON(&in) {
		return
	}
	a, err := cc.svc.Content.CreateAd(c.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Created(a)
}

func (cc *ContentController) UpdateAd(c *ctx.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in services.AdInput
	if !c.BindJSON(&in) {
		return
	}
	a, err := cc.svc.Content.UpdateAd(c.Context(), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Success(a)
}

func (cc *ContentController) DeleteAd(c *ctx.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := cc.svc.Content.DeleteAd(c.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Success(message("Ad deleted."))
}

// Upload handles POST /api/upload with a multipart "file" field.
func (cc *ContentController) Upload(c *ctx.Context) {
	// room for the multipart framing around the file itself
	c.R.Body = http.MaxBytesReader(c.W, c.R.Body, config.UploadMaxBytes()+64<<10)
	file, _, err := c.R.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.ValidationError(map[string]string{"file": "The file is too large."})
			return
		}
		c.ValidationError(map[string]string{"file": "The file field is required."})
		return
	}
	defer file.Close()

	up, err := cc.svc.Uploads.Store(c.Context(), file)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Created(up)
}

func (cc *ContentController) Translate(c *ctx.Context) {
	var in services.TranslateInput
	if !c.BindJSON(&in) {
		return
	}
	out, err := cc.svc.Translate.Translate(c.Context(), in)
	if err != nil {
		c.Log().Warn("translate failed", "error", err)
		c.Error(http.StatusBadGateway, "Translation service unavailable")
		return
	}
	c.Success(out)
}
