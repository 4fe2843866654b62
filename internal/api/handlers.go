package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourorg/product-catalog/internal/catalog"
	"github.com/yourorg/product-catalog/internal/images"
	"github.com/yourorg/product-catalog/internal/metrics"
	"github.com/yourorg/product-catalog/internal/models"
	"github.com/yourorg/product-catalog/internal/normalize"
	"github.com/yourorg/product-catalog/internal/storage"
)

// MaxImageSize is the upload cap for product images.
const MaxImageSize = 5 << 20

type Handler struct {
	catalog *catalog.Store
	images  *images.Manager
	blobs   storage.BlobStore
	log     *zap.Logger
}

func NewHandler(cat *catalog.Store, img *images.Manager, blobs storage.BlobStore, log *zap.Logger) *Handler {
	return &Handler{catalog: cat, images: img, blobs: blobs, log: log}
}

// Health is a plain liveness probe.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Server is working"})
}

// GetProducts lists the catalog. Image keys are replaced by presigned URLs;
// when signing fails the raw key is returned instead, so the listing never
// fails on an unsignable image. Legacy date encodings are mapped for
// display; all other fields come back exactly as stored.
func (h *Handler) GetProducts(c *gin.Context) {
	ctx := c.Request.Context()
	products, err := h.catalog.List(ctx)
	if err != nil {
		h.log.Error("list products", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	for i := range products {
		products[i].StartDate = normalize.LegacyDate(products[i].StartDate)
		products[i].EndDate = normalize.LegacyDate(products[i].EndDate)
		if products[i].ImageKey == "" {
			continue
		}
		if u, ok := h.images.Sign(ctx, products[i].ImageKey); ok {
			products[i].ImageKey = u
		}
	}
	c.JSON(http.StatusOK, products)
}

// productPayload is the JSON carried in the multipart "data" field of a
// create request. Keys match what the form components send.
type productPayload struct {
	Name        string `json:"商品名"`
	Description string `json:"商品説明"`
	Category    string `json:"商品分類"`
	StartDate   string `json:"提供開始日"`
	EndDate     string `json:"提供終了日"`
	Quantity    string `json:"数量"`
	Unit        string `json:"単位"`
	Contact     string `json:"提供者の連絡先"`
	Address     string `json:"提供元の住所"`
	Manager     string `json:"作業所長名"`
}

// CreateProduct stores the uploaded image (when present), then appends the
// record referencing the derived key. The two writes are independent: a
// stored image whose catalog append fails stays behind and is reclaimed by
// the sweep worker, never rolled back here.
func (h *Handler) CreateProduct(c *gin.Context) {
	ctx := c.Request.Context()

	raw := c.PostForm("data")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "data フィールドがありません"})
		return
	}
	var payload productPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "商品データの形式が不正です: " + err.Error()})
		return
	}
	if strings.TrimSpace(payload.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "商品名は必須です"})
		return
	}

	imageKey := ""
	file, header, err := c.Request.FormFile("image")
	if err == nil {
		defer file.Close()
		if header.Size > MaxImageSize {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "画像サイズは5MB以下にしてください"})
			return
		}
		imageKey, err = h.images.Store(ctx, payload.Name, file, header.Filename, header.Header.Get("Content-Type"))
		if err != nil {
			h.log.Error("store image", zap.String("title", payload.Name), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "作成に失敗しました: 画像を保存できません"})
			return
		}
	}

	product := models.Product{
		Title:       payload.Name,
		Description: payload.Description,
		Category:    payload.Category,
		StartDate:   payload.StartDate,
		EndDate:     payload.EndDate,
		Quantity:    payload.Quantity,
		Unit:        payload.Unit,
		Contact: models.Contact{
			Email:       payload.Contact,
			LookupValue: payload.Contact,
		},
		Address:         payload.Address,
		Manager:         payload.Manager,
		ImageKey:        imageKey,
		ModifiedDate:    time.Now().UTC().Format(time.RFC3339),
		LastUpdatedFrom: "Website",
	}

	if err := h.catalog.Append(ctx, product); err != nil {
		h.log.Error("append product", zap.String("title", product.Title), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "作成に失敗しました: " + err.Error()})
		return
	}
	metrics.ProductsCreated.Inc()

	resp := product
	if imageKey != "" {
		if u, ok := h.images.Sign(ctx, imageKey); ok {
			resp.ImageKey = u
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "商品が作成されました",
		"product": resp,
	})
}

type updateFields struct {
	Description *string `json:"商品説明"`
	Category    *string `json:"商品分類"`
	StartDate   *string `json:"提供開始日"`
	EndDate     *string `json:"提供終了日"`
	Quantity    *string `json:"数量"`
	Unit        *string `json:"単位"`
	Contact     *string `json:"提供者の連絡先"`
	Address     *string `json:"提供元の住所"`
	Manager     *string `json:"作業所長名"`
}

type updateRequest struct {
	ItemID string       `json:"itemId" binding:"required"`
	Fields updateFields `json:"fields"`
}

// UpdateProduct patches the first record matching itemId. Absent fields keep
// their stored values; the contact's LookupValue in particular survives an
// email change. The modification stamp is always refreshed.
func (h *Handler) UpdateProduct(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	updated, err := h.catalog.Replace(c.Request.Context(), req.ItemID, func(p models.Product) models.Product {
		f := req.Fields
		if f.Description != nil {
			p.Description = *f.Description
		}
		if f.Category != nil {
			p.Category = *f.Category
		}
		if f.StartDate != nil {
			p.StartDate = *f.StartDate
		}
		if f.EndDate != nil {
			p.EndDate = *f.EndDate
		}
		if f.Quantity != nil {
			p.Quantity = *f.Quantity
		}
		if f.Unit != nil {
			p.Unit = *f.Unit
		}
		if f.Contact != nil {
			p.Contact.Email = *f.Contact
		}
		if f.Address != nil {
			p.Address = *f.Address
		}
		if f.Manager != nil {
			p.Manager = *f.Manager
		}
		p.ModifiedDate = time.Now().UTC().Format(time.RFC3339)
		p.LastUpdatedFrom = "Website"
		return p
	})
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "更新に失敗しました: 商品が見つかりません"})
			return
		}
		h.log.Error("update product", zap.String("title", req.ItemID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "更新に失敗しました: " + err.Error()})
		return
	}
	metrics.ProductsUpdated.Inc()

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"message":        "更新が完了しました",
		"updatedProduct": updated,
	})
}

// DeleteProduct removes every record with the given title after a
// best-effort delete of the first match's image. Failures are masked on
// purpose: the UI treats delete as fire-and-forget and the record is gone
// from the next listing either way. The decision to mask lives here, at the
// boundary, not in the store.
func (h *Handler) DeleteProduct(c *gin.Context) {
	ctx := c.Request.Context()
	title := c.Param("title")

	if existing, err := h.catalog.Find(ctx, title); err == nil && existing.ImageKey != "" {
		h.images.Delete(ctx, existing.ImageKey)
	}

	out := h.catalog.Remove(ctx, title)
	switch out.Result {
	case catalog.Removed:
		metrics.ProductsDeleted.Inc()
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "商品が削除されました"})
	case catalog.AlreadyAbsent:
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "商品は既に削除されています"})
	default:
		h.log.Error("delete product", zap.String("title", title), zap.Error(out.Reason))
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "商品は既に削除されています"})
	}
}

// ServeBlob streams a stored blob. Registered only for the local backend,
// whose PresignGet hands out paths under /blob/ instead of signed URLs.
func (h *Handler) ServeBlob(c *gin.Context) {
	key := c.Param("key")
	rc, info, err := h.blobs.Get(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		h.log.Error("serve blob", zap.String("key", key), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer rc.Close()
	c.DataFromReader(http.StatusOK, info.Size, "application/octet-stream", rc, nil)
}
