package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"

	"github.com/km-arc/go-nix/framework/app"
	"github.com/km-arc/go-nix/framework/container"
	"github.com/km-arc/go-nix/framework/events"
	gohttp "github.com/km-arc/go-nix/framework/http"
)

func main() {
	application, err := app.New() // loads .env.local / .env and config/app.yaml
	if err != nil {
		log.Fatal(err)
	}

	// ── Services ──────────────────────────────────────────────────────────────

	// One store for the whole process. PhotoController is built per request;
	// its constructor gets the store and the logger from the container.
	application.Set(container.TypeKey((*PhotoStore)(nil)), NewPhotoStore())
	application.MustProvide(NewPhotoController)

	// ── Routes ────────────────────────────────────────────────────────────────

	r := application.Router()

	r.Get("/", func(req *gohttp.Request) *gohttp.Response {
		return gohttp.Success(map[string]any{
			"message":    "Welcome to go-nix!",
			"request_id": req.ID(),
		})
	}, "home")

	r.Get("/health", func() *gohttp.Response {
		return gohttp.Text(http.StatusOK, "ok")
	}, "health")

	// GET /photos, POST /photos, GET|PUT|DELETE /photos/{id}
	r.Resource("/photos", (*PhotoController)(nil), "photos")

	// ── Listeners ─────────────────────────────────────────────────────────────

	application.Events().
		On(events.ResponseSend, func(res *gohttp.Response) {
			res.WithHeader("X-Powered-By", "go-nix/"+app.Version)
		}).
		On(events.Exception, func(err error, req *gohttp.Request) {
			application.Logger().Warn("request failed",
				slog.String("request_id", req.ID()),
				slog.String("error", err.Error()),
			)
		})

	// ── Serve ─────────────────────────────────────────────────────────────────

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := application.Run(ctx); err != nil {
		log.Fatal(err)
	}
}

// ── Example domain ────────────────────────────────────────────────────────────

type Photo struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

// PhotoStore is an in-memory photo repository.
type PhotoStore struct {
	mu     sync.RWMutex
	next   int
	photos map[int]Photo
}

func NewPhotoStore() *PhotoStore {
	return &PhotoStore{next: 1, photos: make(map[int]Photo)}
}

func (s *PhotoStore) All() []Photo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Photo, 0, len(s.photos))
	for _, p := range s.photos {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *PhotoStore) Find(id int) (Photo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.photos[id]
	return p, ok
}

func (s *PhotoStore) Save(p Photo) Photo {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.next
		s.next++
	}
	s.photos[p.ID] = p
	return p
}

func (s *PhotoStore) Delete(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.photos[id]
	delete(s.photos, id)
	return ok
}

// PhotoController is a resource controller.
type PhotoController struct {
	store  *PhotoStore
	logger *slog.Logger
}

func NewPhotoController(store *PhotoStore, logger *slog.Logger) *PhotoController {
	return &PhotoController{store: store, logger: logger}
}

func (c *PhotoController) Index() *gohttp.Response {
	return gohttp.Success(c.store.All())
}

func (c *PhotoController) Store(req *gohttp.Request) (*gohttp.Response, error) {
	var in struct {
		Title string `json:"title"`
	}
	if err := req.Bind(&in); err != nil {
		return nil, gohttp.Abort(http.StatusBadRequest, err.Error())
	}
	if in.Title == "" {
		return nil, gohttp.Abort(http.StatusUnprocessableEntity, "The title field is required.")
	}
	p := c.store.Save(Photo{Title: in.Title})
	c.logger.Info("photo stored", slog.Int("id", p.ID))
	return gohttp.Created(p), nil
}

func (c *PhotoController) Show(id int) (*gohttp.Response, error) {
	p, ok := c.store.Find(id)
	if !ok {
		return nil, gohttp.Abort(http.StatusNotFound, "No such photo.")
	}
	return gohttp.Success(p), nil
}

func (c *PhotoController) Update(req *gohttp.Request, id int) (*gohttp.Response, error) {
	p, ok := c.store.Find(id)
	if !ok {
		return nil, gohttp.Abort(http.StatusNotFound, "No such photo.")
	}
	if title := req.Input("title"); title != "" {
		p.Title = title
	}
	return gohttp.Success(c.store.Save(p)), nil
}

func (c *PhotoController) Destroy(id int) (*gohttp.Response, error) {
	if !c.store.Delete(id) {
		return nil, gohttp.Abort(http.StatusNotFound, "No such photo.")
	}
	return gohttp.NoContent(), nil
}
