package cwlog

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"

	"github.com/advdv/reqlog"
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

// MaxSettingsBodyBytes limits the size of a settings update.
const MaxSettingsBodyBytes = 1 << 20

// Routes of the settings API.
const (
	SensitiveFieldsPath     = "/settings/sensitive-fields"
	FieldAutocompletePath   = "/settings/sensitive-fields/autocomplete"
	sensitiveFieldsFormName = "sensitive_fields"
)

// SettingsAPI serves the sensitive field configuration and the field picker.
type SettingsAPI struct {
	policy  *reqlog.FieldPolicy
	catalog reqlog.FieldCatalog
}

// NewSettingsAPI inits the API.
func NewSettingsAPI(policy *reqlog.FieldPolicy, catalog reqlog.FieldCatalog) *SettingsAPI {
	return &SettingsAPI{policy: policy, catalog: catalog}
}

// Register adds the routes of the API to m.
func (a *SettingsAPI) Register(m *Mux) {
	m.HandleFunc("GET "+SensitiveFieldsPath, a.Get)
	m.HandleFunc("PUT "+SensitiveFieldsPath, a.Put)
	m.HandleFunc("POST "+SensitiveFieldsPath, a.Put)
	m.HandleFunc("GET "+FieldAutocompletePath, a.Autocomplete)
}

type fieldsDoc struct {
	Fields []string `json:"fields"`
}

// Get returns the configured fields as JSON, or as one name per line when plain text is asked for.
func (a *SettingsAPI) Get(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if mediaType(r.Header.Get("Accept")) == "text/plain" {
		text, err := a.policy.Text(ctx)
		if err != nil {
			return err
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, err = io.WriteString(w, text)
		return err
	}

	fields, err := a.policy.Fields(ctx)
	if err != nil {
		return err
	}

	return writeJSON(w, http.StatusOK, fieldsDoc{Fields: fields})
}

// Put replaces the configured fields. It accepts a JSON document, the settings form with its free-text
// textarea, or a plain text body with one name per line.
func (a *SettingsAPI) Put(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxSettingsBodyBytes)

	var err error
	switch mediaType(r.Header.Get("Content-Type")) {
	case "application/json":
		var doc fieldsDoc
		if derr := json.NewDecoder(r.Body).Decode(&doc); derr != nil {
			return bodyError(derr)
		}
		err = a.policy.Replace(ctx, doc.Fields)
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if perr := r.ParseMultipartForm(MaxSettingsBodyBytes); perr != nil && !errors.Is(perr, http.ErrNotMultipart) {
			return bodyError(perr)
		}
		err = a.policy.ReplaceText(ctx, r.PostFormValue(sensitiveFieldsFormName))
	case "text/plain", "":
		body, rerr := io.ReadAll(r.Body)
		if rerr != nil {
			return bodyError(rerr)
		}
		err = a.policy.ReplaceText(ctx, string(body))
	default:
		return reqlog.NewError(reqlog.CodeUnsupportedMediaType,
			errors.Newf("unsupported content type %q", r.Header.Get("Content-Type")))
	}
	if err != nil {
		return err
	}

	Log(ctx).Info("sensitive fields updated")

	return a.Get(ctx, w, r)
}

type suggestion struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Autocomplete returns the catalog fields matching the "q" query parameter for the field picker.
func (a *SettingsAPI) Autocomplete(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	names, err := a.catalog.FieldNames(ctx)
	if err != nil {
		return reqlog.NewError(reqlog.CodeBadGateway, err)
	}

	matches := reqlog.MatchFields(names, r.URL.Query().Get("q"))

	return writeJSON(w, http.StatusOK, lo.Map(matches, func(name string, _ int) suggestion {
		return suggestion{Value: name, Label: name}
	}))
}

func bodyError(err error) error {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return reqlog.NewError(reqlog.CodeRequestEntityTooBig, err)
	}
	return reqlog.NewError(reqlog.CodeBadRequest, err)
}

func mediaType(header string) string {
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return mt
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}
