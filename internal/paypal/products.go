package paypal

import (
	"net/http"

	"github.com/wondertwin-ai/twin-paypal/internal/store"
)

type createProductRequest struct {
	Name        *string `json:"name" validate:"required"`
	Description string  `json:"description"`
	Type        string  `json:"type"`
	Category    string  `json:"category"`
	ImageURL    string  `json:"image_url"`
	HomeURL     string  `json:"home_url"`
}

// listedProduct is a product as it appears in list responses, without its type.
type listedProduct struct {
	ID          string       `json:"id"`
	Name        string       `json:"name,omitempty"`
	Description string       `json:"description,omitempty"`
	Category    string       `json:"category,omitempty"`
	ImageURL    string       `json:"image_url,omitempty"`
	HomeURL     string       `json:"home_url,omitempty"`
	CreateTime  string       `json:"create_time"`
	UpdateTime  string       `json:"update_time"`
	Links       []store.Link `json:"links"`
}

type productList struct {
	Products   []listedProduct `json:"products"`
	TotalItems *int            `json:"total_items,omitempty"`
	TotalPages *int            `json:"total_pages,omitempty"`
	Links      []store.Link    `json:"links"`
}

func (m *Mock) createProduct(c *call) reply {
	var req createProductRequest
	if rep, ok := m.decodeCreate(c.bodyBytes(), &req); !ok {
		return rep
	}

	productType := req.Type
	if productType == "" {
		productType = store.ProductTypePhysical
	}

	id := m.store.Products.NextID()
	href := m.resourceURL(productsPath + "/" + id)
	now := m.now()
	product := store.Product{
		ID:          id,
		Name:        *req.Name,
		Description: req.Description,
		Type:        productType,
		Category:    req.Category,
		ImageURL:    req.ImageURL,
		HomeURL:     req.HomeURL,
		CreateTime:  now,
		UpdateTime:  now,
		Links:       []store.Link{selfLink(href), editLink(href)},
	}
	m.store.Products.Set(id, product)

	m.notifier.Notify(EventProductCreated, ResourceProduct, "A product has been created.", product)
	return jsonReply(http.StatusCreated, product)
}

func (m *Mock) listProducts(c *call) reply {
	p := parsePaging(c.req)
	page := m.store.Products.Paginate(p.page, p.size, nil)

	list := productList{
		Products: make([]listedProduct, 0, len(page.Data)),
		Links:    m.listLinks(c.req, productsPath),
	}
	for _, product := range page.Data {
		list.Products = append(list.Products, listedProduct{
			ID:          product.ID,
			Name:        product.Name,
			Description: product.Description,
			Category:    product.Category,
			ImageURL:    product.ImageURL,
			HomeURL:     product.HomeURL,
			CreateTime:  product.CreateTime,
			UpdateTime:  product.UpdateTime,
			Links:       product.Links,
		})
	}
	if p.totalRequired {
		list.TotalItems = &page.TotalItems
		list.TotalPages = &page.TotalPages
	}
	return jsonReply(http.StatusOK, list)
}

// patchProduct applies the change list and always answers 204; an
// undecodable body is an empty change list.
func (m *Mock) patchProduct(c *call) reply {
	changes, _ := decodeChanges(c.bodyBytes())

	var updated store.Product
	changed := false
	m.store.Products.Update(c.id, func(p *store.Product) error {
		if ApplyProductPatch(p, changes) {
			p.UpdateTime = m.now()
			changed = true
		}
		updated = *p
		return nil
	})

	if changed {
		m.notifier.Notify(EventProductUpdated, ResourceProduct, "A product has been updated.", updated)
	}
	return empty(http.StatusNoContent)
}
