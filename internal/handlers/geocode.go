package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"addressbook/internal/geo"
	"addressbook/internal/models"
)

// SearchAddresses proxies a forward lookup. No match is an empty list.
func SearchAddresses(resolver *geo.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, "GEOCODE")

		q := strings.TrimSpace(c.Query("q"))
		if q == "" {
			respondError(c, models.Invalid("q", "q is required"))
			return
		}

		candidates := make([]geo.Candidate, 0)
		for cand, err := range resolver.Search(c.Request.Context(), q).All() {
			if err != nil {
				respondError(c, err)
				return
			}
			candidates = append(candidates, cand)
		}

		c.JSON(http.StatusOK, success(gin.H{"candidates": candidates}))
	}
}

func ReverseGeocode(resolver *geo.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, "GEOCODE")

		lng, err := strconv.ParseFloat(c.Query("lng"), 64)
		if err != nil {
			respondError(c, models.Invalid("lng", "lng must be a number"))
			return
		}
		lat, err := strconv.ParseFloat(c.Query("lat"), 64)
		if err != nil {
			respondError(c, models.Invalid("lat", "lat must be a number"))
			return
		}

		cand, err := resolver.Reverse(c.Request.Context(), models.NewCoordinates(lng, lat))
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, success(gin.H{"candidate": cand}))
	}
}
