package webapp

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func router(webapp *WebApp) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/read_file", webapp.readFile())
	r.Post("/write_file", webapp.writeFile())
	r.Post("/delete_path", webapp.deletePath())
	r.Post("/move_path", webapp.movePath())
	r.Post("/edit_file", webapp.editFile())
	r.Post("/create_directory", webapp.createDirectory())
	r.Post("/list_directory", webapp.listDirectory())
	r.Post("/directory_tree", webapp.directoryTree())
	r.Post("/get_metadata", webapp.getMetadata())
	r.Post("/search_content", webapp.searchContent())
	r.Post("/database_query", webapp.databaseQuery())

	r.Route("/metadata", func(r chi.Router) {
		r.Post("/search", webapp.metadataSearch())
		r.Post("/watch", webapp.watchDirectory())
		r.Post("/unwatch", webapp.unwatchDirectory())
		r.Post("/scan", webapp.scanDirectories())
		r.Post("/reindex", webapp.reindexDirectory())
		r.Get("/status", webapp.watcherStatus())
	})

	return r
}
