package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (r *Router) listProducts(ctx *gin.Context) {
	products, err := r.Catalog.List(ctx)
	if err != nil {
		fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, ProductsFromCatalog(products))
}

func (r *Router) getProduct(ctx *gin.Context) {
	product, err := r.Catalog.Get(ctx, ctx.Param(IdParam))
	if err != nil {
		fail(ctx, err)
		return
	}
	out := ProductFromCatalog(&product)
	ctx.JSON(http.StatusOK, &out)
}

func (r *Router) searchProducts(ctx *gin.Context) {
	products, err := r.Catalog.Search(ctx, ctx.Param(QueryParam))
	if err != nil {
		fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, ProductsFromCatalog(products))
}

func (r *Router) filterProducts(ctx *gin.Context) {
	var filter Filter
	err := ctx.ShouldBindJSON(&filter)
	if err != nil {
		badRequest(ctx, err)
		return
	}

	products, err := r.Catalog.Filter(ctx, FilterToCatalog(&filter))
	if err != nil {
		fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, ProductsFromCatalog(products))
}

func (r *Router) listGroups(ctx *gin.Context) {
	groups, err := r.Catalog.Groups(ctx)
	if err != nil {
		fail(ctx, err)
		return
	}
	out := make([]ProductGroup, 0, len(groups))
	for index := range groups {
		out = append(out, GroupFromCatalog(&groups[index]))
	}
	ctx.JSON(http.StatusOK, out)
}
