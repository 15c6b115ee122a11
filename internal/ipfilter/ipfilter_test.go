package ipfilter

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"fknsrs.biz/p/vidvault/internal/config"
)

func TestClientIP(t *testing.T) {
	a := assert.New(t)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.5:51234"
	a.Equal("10.0.0.5", ClientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	a.Equal("203.0.113.7", ClientIP(r))
}

func TestAllowed(t *testing.T) {
	a := assert.New(t)

	a.True(Allowed("10.0.0.5", nil), "empty list admits everyone")
	a.True(Allowed("10.0.0.5", config.IPList{"10.0.0.5"}))
	a.True(Allowed("::1", config.IPList{"0:0:0:0:0:0:0:1"}), "equivalent representations match")
	a.False(Allowed("10.0.0.6", config.IPList{"10.0.0.5"}))
	a.False(Allowed("garbage", config.IPList{"10.0.0.5"}))
	a.True(Allowed("10.0.0.5", config.IPList{"bogus", "10.0.0.5"}), "unparseable entries are skipped")
}

func TestRegister(t *testing.T) {
	a := assert.New(t)

	cell := config.NewCell(config.Config{AllowedIPs: config.IPList{"10.0.0.5"}})
	mw := Register(cell)

	var called bool
	next := func(rw http.ResponseWriter, r *http.Request) { called = true }

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.5:1000"
	rw := httptest.NewRecorder()
	mw(rw, r, next)
	a.True(called)

	called = false
	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.1:1000"
	rw = httptest.NewRecorder()
	mw(rw, r, next)
	a.False(called)
	a.Equal(http.StatusForbidden, rw.Code)
}
