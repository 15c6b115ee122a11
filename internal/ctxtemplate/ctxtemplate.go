package ctxtemplate

import (
	"context"
	"fmt"
	"net/http"

	"fknsrs.biz/p/vidvault/internal/templatecollection"
)

// context registration

var collectionKey int

func WithCollection(ctx context.Context, collection templatecollection.Collection) context.Context {
	return context.WithValue(ctx, &collectionKey, collection)
}

func getCollection(ctx context.Context) templatecollection.Collection {
	if v := ctx.Value(&collectionKey); v != nil {
		return v.(templatecollection.Collection)
	}

	return nil
}

// middleware

func Register(collection templatecollection.Collection) func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	return func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		next(rw, r.WithContext(WithCollection(r.Context(), collection)))
	}
}

// main interface

func ExecuteTemplateIntoResponse(r *http.Request, rw http.ResponseWriter, name string, data interface{}) error {
	collection := getCollection(r.Context())
	if collection == nil {
		return fmt.Errorf("ctxtemplate.ExecuteTemplateIntoResponse: no template collection in context")
	}

	rw.Header().Set("Content-Type", "text/html; charset=utf-8")

	return collection.ExecuteTemplate(rw, name, data)
}
