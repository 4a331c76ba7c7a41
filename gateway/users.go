package gateway

import (
	"net/http"

	"github.com/example/localdelivery/pkg/service"
	"github.com/gin-gonic/gin"
)

func (g *Gateway) register(c *gin.Context) {
	var req service.RegisterInput
	if !g.bind(c, &req) {
		return
	}

	session, err := g.services.Users.Register(c.Request.Context(), req)
	if err != nil {
		g.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{
		"message": "Registration successful",
		"token":   session.Token,
		"user":    session.User,
	})
}

func (g *Gateway) login(c *gin.Context) {
	var req service.LoginInput
	if !g.bind(c, &req) {
		return
	}

	session, err := g.services.Users.Login(c.Request.Context(), req)
	if err != nil {
		g.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   session.Token,
		"user":    session.User,
	})
}

func (g *Gateway) getProfile(c *gin.Context) {
	user, err := g.services.Users.Profile(c.Request.Context(), identityOf(c).UserID)
	if err != nil {
		g.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"user": user})
}

func (g *Gateway) updateProfile(c *gin.Context) {
	var req service.ProfileInput
	if !g.bind(c, &req) {
		return
	}

	user, err := g.services.Users.UpdateProfile(c.Request.Context(), identityOf(c).UserID, req)
	if err != nil {
		g.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "Profile updated", "user": user})
}

func (g *Gateway) listAddresses(c *gin.Context) {
	addrs, err := g.services.Addresses.List(c.Request.Context(), identityOf(c).UserID)
	if err != nil {
		g.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"addresses": addrs})
}

func (g *Gateway) addAddress(c *gin.Context) {
	var req service.AddressInput
	if !g.bind(c, &req) {
		return
	}

	addr, addrs, err := g.services.Addresses.Add(c.Request.Context(), identityOf(c).UserID, req)
	if err != nil {
		g.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"address": addr, "addresses": addrs})
}

func (g *Gateway) updateAddress(c *gin.Context) {
	var req service.AddressPatch
	if !g.bind(c, &req) {
		return
	}

	addr, addrs, err := g.services.Addresses.Update(c.Request.Context(), identityOf(c).UserID, c.Param("id"), req)
	if err != nil {
		g.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"address": addr, "addresses": addrs})
}

func (g *Gateway) deleteAddress(c *gin.Context) {
	addrs, err := g.services.Addresses.Delete(c.Request.Context(), identityOf(c).UserID, c.Param("id"))
	if err != nil {
		g.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "Address deleted", "addresses": addrs})
}

func (g *Gateway) setDefaultAddress(c *gin.Context) {
	addrs, err := g.services.Addresses.SetDefault(c.Request.Context(), identityOf(c).UserID, c.Param("id"))
	if err != nil {
		g.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"addresses": addrs})
}
