// Package graphql exposes the catalog as a read-only GraphQL schema.
package graphql

import (
	"errors"

	"github.com/graphql-go/graphql"

	"github.com/rrnagar/marketplace/app/models"
	"github.com/rrnagar/marketplace/app/repositories"
	"github.com/rrnagar/marketplace/app/services"
	"github.com/rrnagar/marketplace/pkg/collection"
	gql "github.com/rrnagar/marketplace/pkg/graphql"
)

var categoryType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Category",
	Fields: graphql.Fields{
		"id":          &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		"name":        &graphql.Field{Type: graphql.String},
		"slug":        &graphql.Field{Type: graphql.String},
		"icon":        &graphql.Field{Type: graphql.String},
		"description": &graphql.Field{Type: graphql.String},
	},
})

var offerType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Offer",
	Fields: graphql.Fields{
		"supplierId": &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		"price":      &graphql.Field{Type: graphql.Float},
		"stock":      &graphql.Field{Type: graphql.Int},
	},
})

var productType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Product",
	Fields: graphql.Fields{
		"id":          &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		"name":        &graphql.Field{Type: graphql.String},
		"description": &graphql.Field{Type: graphql.String},
		"categoryId":  &graphql.Field{Type: graphql.Int},
		"price":       &graphql.Field{Type: graphql.Float},
		"unit":        &graphql.Field{Type: graphql.String},
		"variety":     &graphql.Field{Type: graphql.String},
		"imageUrl":    &graphql.Field{Type: graphql.String},
		"thumbUrl":    &graphql.Field{Type: graphql.String},
		"offers":      &graphql.Field{Type: graphql.NewList(offerType)},
	},
})

func category(c models.Category) map[string]any {
	return map[string]any{
		"id":          int(c.ID),
		"name":        c.Name,
		"slug":        c.Slug,
		"icon":        c.Icon,
		"description": c.Description,
	}
}

func product(p models.Product) map[string]any {
	out := map[string]any{
		"id":          int(p.ID),
		"name":        p.Name,
		"description": p.Description,
		"price":       p.Price,
		"unit":        p.Unit,
		"variety":     p.Variety,
		"imageUrl":    p.ImageURL,
		"thumbUrl":    p.ThumbURL,
	}
	if p.CategoryID != nil {
		out["categoryId"] = int(*p.CategoryID)
	}
	out["offers"] = collection.Map(p.Offers, func(o models.ProductSupplier) map[string]any {
		return map[string]any{"supplierId": int(o.SupplierID), "price": o.Price, "stock": o.Stock}
	})
	return out
}

// NewSchema builds the catalog schema:
//
//	categories: [Category]
//	products(search, categoryId, page, perPage): [Product]
//	product(id): Product
func NewSchema(catalog *services.CatalogService) (graphql.Schema, error) {
	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"categories": &graphql.Field{
				Type: graphql.NewList(categoryType),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return collection.Map(catalog.Categories(p.Context), category), nil
				},
			},
			"products": &graphql.Field{
				Type: graphql.NewList(productType),
				Args: graphql.FieldConfigArgument{
					"search":     &graphql.ArgumentConfig{Type: graphql.String},
					"categoryId": &graphql.ArgumentConfig{Type: graphql.Int},
					"page":       &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 1},
					"perPage":    &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					f := repositories.ProductFilter{Status: models.ProductActive}
					f.Search, _ = p.Args["search"].(string)
					if id, ok := p.Args["categoryId"].(int); ok && id > 0 {
						f.CategoryID = uint(id)
					}
					page, _ := p.Args["page"].(int)
					perPage, _ := p.Args["perPage"].(int)
					if perPage < 1 || perPage > 100 {
						perPage = 20
					}
					items, _, err := catalog.Products(p.Context, f, page, perPage)
					if err != nil {
						return nil, err
					}
					return collection.Map(items, product), nil
				},
			},
			"product": &graphql.Field{
				Type: productType,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					id, _ := p.Args["id"].(int)
					if id < 1 {
						return nil, nil
					}
					got, err := catalog.Product(p.Context, uint(id))
					if errors.Is(err, services.ErrNotFound) {
						return nil, nil
					}
					if err != nil {
						return nil, err
					}
					return product(*got), nil
				},
			},
		},
	})
	return gql.NewSchema(query)
}
