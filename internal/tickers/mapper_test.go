package tickers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evafinance/evacore/internal/config"
	"github.com/evafinance/evacore/internal/store"
)

func storeFor(db *sqlx.DB) *store.Store {
	return store.New(db, time.Second)
}

func mockedMapper(t *testing.T, baseURL string) (*Mapper, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	st := sqlx.NewDb(db, "postgres")
	return NewMapper(storeFor(st), config.TickersConfig{
		APIKey:     "test-key",
		BaseURL:    baseURL,
		Enabled:    true,
		MinRequest: time.Millisecond,
	}), mock
}

func mappingColumns() []string {
	return []string{"brand", "ticker", "parent_company", "material", "exchange", "updated_at"}
}

func TestEnsureMappedUsesTableFirst(t *testing.T) {
	m, mock := mockedMapper(t, "http://unused")

	mock.ExpectQuery("FROM brand_ticker_map").
		WithArgs("Hoka").
		WillReturnRows(sqlmock.NewRows(mappingColumns()).
			AddRow("hoka", "DECK", "Deckers Outdoor Corporation", true, "NYSE", time.Now()))

	mapping, err := m.EnsureMapped(context.Background(), "Hoka")
	require.NoError(t, err)
	assert.True(t, mapping.Cached)
	assert.True(t, mapping.Found)
	assert.True(t, mapping.Material)
	assert.Equal(t, "DECK", mapping.Ticker)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureMappedCachedMissStaysMiss(t *testing.T) {
	m, mock := mockedMapper(t, "http://unused")

	// A persisted provider miss: row exists with NULL ticker.
	mock.ExpectQuery("FROM brand_ticker_map").
		WithArgs("obscurebrand").
		WillReturnRows(sqlmock.NewRows(mappingColumns()).
			AddRow("obscurebrand", nil, nil, false, nil, time.Now()))

	mapping, err := m.EnsureMapped(context.Background(), "obscurebrand")
	require.NoError(t, err)
	assert.True(t, mapping.Cached)
	assert.False(t, mapping.Found)
}

func TestEnsureMappedSearchesOnMiss(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search-name", r.URL.Path)
		assert.Equal(t, "Crocs", r.URL.Query().Get("query"))
		assert.Equal(t, "test-key", r.URL.Query().Get("apikey"))
		fmt.Fprint(w, `[
			{"symbol":"CROX.L","name":"Crocs plc","exchangeShortName":"LSE"},
			{"symbol":"CROX","name":"Crocs, Inc.","exchangeShortName":"NASDAQ"}
		]`)
	}))
	defer srv.Close()

	m, mock := mockedMapper(t, srv.URL)
	mock.ExpectQuery("FROM brand_ticker_map").
		WithArgs("Crocs").
		WillReturnRows(sqlmock.NewRows(mappingColumns()))
	mock.ExpectExec("INSERT INTO brand_ticker_map").
		WillReturnResult(sqlmock.NewResult(1, 1))

	mapping, err := m.EnsureMapped(context.Background(), "Crocs")
	require.NoError(t, err)
	assert.False(t, mapping.Cached)
	assert.True(t, mapping.Found)
	assert.True(t, mapping.Material)
	// The non-US listing is skipped; the NASDAQ hit wins.
	assert.Equal(t, "CROX", mapping.Ticker)
	assert.Equal(t, "NASDAQ", mapping.Exchange)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureMappedImmaterialWhenNameDiffers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[{"symbol":"VFC","name":"V.F. Corporation","exchangeShortName":"NYSE"}]`)
	}))
	defer srv.Close()

	m, mock := mockedMapper(t, srv.URL)
	mock.ExpectQuery("FROM brand_ticker_map").
		WithArgs("Vans").
		WillReturnRows(sqlmock.NewRows(mappingColumns()))
	mock.ExpectExec("INSERT INTO brand_ticker_map").
		WillReturnResult(sqlmock.NewResult(1, 1))

	mapping, err := m.EnsureMapped(context.Background(), "Vans")
	require.NoError(t, err)
	assert.True(t, mapping.Found)
	// Ticker resolved but the brand is a small slice of the parent.
	assert.False(t, mapping.Material)
}

func TestEnsureMappedPersistsProviderMiss(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	m, mock := mockedMapper(t, srv.URL)
	mock.ExpectQuery("FROM brand_ticker_map").
		WithArgs("obscurebrand").
		WillReturnRows(sqlmock.NewRows(mappingColumns()))
	mock.ExpectExec("INSERT INTO brand_ticker_map").
		WillReturnResult(sqlmock.NewResult(1, 1))

	mapping, err := m.EnsureMapped(context.Background(), "obscurebrand")
	require.NoError(t, err)
	assert.False(t, mapping.Found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureMappedDisabledProviderSkipsLookup(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	m := NewMapper(storeFor(sqlx.NewDb(db, "postgres")), config.TickersConfig{
		Enabled:    false,
		MinRequest: time.Millisecond,
	})
	mock.ExpectQuery("FROM brand_ticker_map").
		WithArgs("Hoka").
		WillReturnRows(sqlmock.NewRows(mappingColumns()))

	mapping, err := m.EnsureMapped(context.Background(), "Hoka")
	require.NoError(t, err)
	assert.False(t, mapping.Found)
	assert.NoError(t, mock.ExpectationsWereMet())
}
