package utils

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// AuthCache keeps validated access-token claims so the middleware does
// not re-verify the signature on every request.
var AuthCache = cache.New(time.Minute*5, time.Second)
