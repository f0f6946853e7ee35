package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashfaaq98/dossier-console/internal/errs"
)

const page = `<!DOCTYPE html>
<html><head><title>ACME investigada por fraude</title></head>
<body>
<nav><a href="/">Início</a> <a href="/economia">Economia</a></nav>
<article>
<h1>ACME investigada por fraude</h1>
<p>A empresa ACME S.A. passou a ser investigada pela Polícia Federal por suspeita de fraude em licitações públicas realizadas entre 2019 e 2022.</p>
<p>Segundo a investigação, contratos superfaturados somam mais de dez milhões de reais e envolvem ao menos três municípios do interior do estado.</p>
<p>A defesa da empresa nega irregularidades e afirma que colabora com as autoridades desde o início do processo.</p>
</article>
<footer>Todos os direitos reservados</footer>
</body></html>`

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	article, err := NewFetcher(0).Fetch(context.Background(), srv.URL+"/noticia")
	require.NoError(t, err)
	assert.Contains(t, article.Title, "ACME")
	assert.Contains(t, article.Text, "superfaturados")
}

func TestFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := NewFetcher(0).Fetch(context.Background(), srv.URL)
	var berr *errs.BackendError
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, http.StatusNotFound, berr.Status)
}

func TestFetchRejectsNonWebURL(t *testing.T) {
	for _, u := range []string{"", "ftp://example.com/x", "not a url", "file:///etc/passwd"} {
		_, err := NewFetcher(0).Fetch(context.Background(), u)
		assert.True(t, errs.IsValidation(err), u)
	}
}

func TestFetchUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := NewFetcher(0).Fetch(context.Background(), addr)
	assert.True(t, errs.IsNetwork(err))
}

func TestExcerpt(t *testing.T) {
	a := Article{Text: strings.Repeat("á", 10)}
	assert.Equal(t, a.Text, a.Excerpt(10))
	assert.Equal(t, "ááá…", a.Excerpt(3))
}
