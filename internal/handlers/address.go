package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"addressbook/internal/address"
	"addressbook/internal/models"
)

type createAddressRequest struct {
	HouseDetails string    `json:"houseDetails" binding:"max=200"`
	Street       string    `json:"street" binding:"max=200"`
	AddressType  string    `json:"addressType" binding:"omitempty,addresstype"`
	Coordinates  []float64 `json:"coordinates" binding:"required,lnglat"`
	Favorite     bool      `json:"favorite"`
}

// updateAddressRequest leaves absent fields nil so they are not touched.
type updateAddressRequest struct {
	AddressText  *string   `json:"address" binding:"omitempty,min=1,max=300"`
	HouseDetails *string   `json:"houseDetails" binding:"omitempty,max=200"`
	Street       *string   `json:"street" binding:"omitempty,max=200"`
	AddressType  *string   `json:"addressType" binding:"omitempty,addresstype"`
	Coordinates  []float64 `json:"coordinates" binding:"omitempty,lnglat"`
	Favorite     *bool     `json:"favorite"`
}

func (r updateAddressRequest) patch() models.AddressPatch {
	p := models.AddressPatch{
		AddressText:  r.AddressText,
		HouseDetails: r.HouseDetails,
		Street:       r.Street,
		Coordinates:  coordinates(r.Coordinates),
		Favorite:     r.Favorite,
	}
	if r.AddressType != nil {
		t := models.AddressType(*r.AddressType)
		p.AddressType = &t
	}
	return p
}

func coordinates(v []float64) *models.Coordinates {
	if len(v) != 2 {
		return nil
	}
	c := models.NewCoordinates(v[0], v[1])
	return &c
}

type addressView struct {
	models.Address
	Label string `json:"label"`
}

func viewOf(a *models.Address) addressView {
	return addressView{Address: *a, Label: a.Label()}
}

func CreateAddress(addresses *address.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, "ADDRESS")

		owner, ok := ownerID(c)
		if !ok {
			return
		}

		var req createAddressRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		a, err := addresses.Create(c.Request.Context(), owner, address.CreateInput{
			HouseDetails: req.HouseDetails,
			Street:       req.Street,
			AddressType:  models.AddressType(req.AddressType),
			Coordinates:  coordinates(req.Coordinates),
			Favorite:     req.Favorite,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, success(gin.H{"address": viewOf(a)}))
	}
}

// GetCurrentAddress answers 404 when the owner has not saved an address yet.
// Clients treat that as a prompt to add one.
func GetCurrentAddress(addresses *address.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, "ADDRESS")

		owner, ok := ownerID(c)
		if !ok {
			return
		}

		a, err := addresses.Current(c.Request.Context(), owner)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, success(gin.H{"hasAddress": true, "address": viewOf(a)}))
	}
}

func ListAddresses(addresses *address.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, "ADDRESS")

		owner, ok := ownerID(c)
		if !ok {
			return
		}

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondError(c, err)
			return
		}

		list, err := addresses.List(c.Request.Context(), owner)
		if err != nil {
			respondError(c, err)
			return
		}

		total := len(list)
		list = paginate(list, page, limit)
		views := make([]addressView, 0, len(list))
		for i := range list {
			views = append(views, viewOf(&list[i]))
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "results": total, "data": gin.H{"addresses": views}})
	}
}

func GetAddress(addresses *address.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, "ADDRESS")

		owner, ok := ownerID(c)
		if !ok {
			return
		}
		id, ok := pathID(c)
		if !ok {
			return
		}

		a, err := addresses.Get(c.Request.Context(), owner, id)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, success(gin.H{"address": viewOf(a)}))
	}
}

func UpdateAddress(addresses *address.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, "ADDRESS")

		owner, ok := ownerID(c)
		if !ok {
			return
		}
		id, ok := pathID(c)
		if !ok {
			return
		}

		var req updateAddressRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		a, err := addresses.Update(c.Request.Context(), owner, id, req.patch())
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, success(gin.H{"address": viewOf(a)}))
	}
}

func DeleteAddress(addresses *address.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, "ADDRESS")

		owner, ok := ownerID(c)
		if !ok {
			return
		}
		id, ok := pathID(c)
		if !ok {
			return
		}

		if err := addresses.Delete(c.Request.Context(), owner, id); err != nil {
			respondError(c, err)
			return
		}

		c.Status(http.StatusNoContent)
	}
}
