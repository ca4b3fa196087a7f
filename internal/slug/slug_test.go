package slug

import (
	"context"
	"errors"
	"real-estate-catalog/internal/database"
	"real-estate-catalog/internal/models"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockTagFinder struct {
	mock.Mock
}

func (m *mockTagFinder) FindTagBySlug(ctx context.Context, slug string) (*models.Tag, error) {
	args := m.Called(ctx, slug)
	tag, _ := args.Get(0).(*models.Tag)
	return tag, args.Error(1)
}

type mockNeighborhoodFinder struct {
	mock.Mock
}

func (m *mockNeighborhoodFinder) FindNeighborhoodBySlug(ctx context.Context, slug string) (*models.Neighborhood, error) {
	args := m.Called(ctx, slug)
	n, _ := args.Get(0).(*models.Neighborhood)
	return n, args.Error(1)
}

func TestMake(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Cúcuta", "cucuta"},
		{"  Barrio  Los Caobos ", "barrio-los-caobos"},
		{"Con Piscina!", "con-piscina"},
		{"Ñapa & Señal", "napa-senal"},
		{"---", ""},
		{"Apto 301 - Torre B", "apto-301-torre-b"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Make(tt.in), tt.in)
	}
}

func TestResolve_PluralsAndAliases(t *testing.T) {
	r := NewResolver(&mockTagFinder{}, &mockNeighborhoodFinder{})
	ctx := context.Background()

	casas, err := r.Resolve(ctx, "casas")
	require.NoError(t, err)
	casa, err := r.Resolve(ctx, "casa")
	require.NoError(t, err)
	assert.Equal(t, KindType, casas.Kind)
	assert.Equal(t, casa, casas)
	assert.Equal(t, "casa", casas.Type)

	patios, err := r.Resolve(ctx, "patios")
	require.NoError(t, err)
	losPatios, err := r.Resolve(ctx, "los-patios")
	require.NoError(t, err)
	assert.Equal(t, KindCity, patios.Kind)
	assert.Equal(t, losPatios, patios)
	assert.Equal(t, "los-patios", patios.City)

	cucuta, err := r.Resolve(ctx, " Cúcuta ")
	require.NoError(t, err)
	assert.Equal(t, "cucuta", cucuta.City)
	assert.Equal(t, "Cúcuta", cucuta.CanonicalName)
}

func TestResolve_Tag(t *testing.T) {
	tags := &mockTagFinder{}
	piscina := &models.Tag{ID: 4, Name: "Con piscina", Slug: "con-piscina"}
	tags.On("FindTagBySlug", mock.Anything, "con-piscina").Return(piscina, nil)

	res, err := NewResolver(tags, &mockNeighborhoodFinder{}).Resolve(context.Background(), "con-piscina")
	require.NoError(t, err)
	assert.Equal(t, KindTag, res.Kind)
	assert.Equal(t, uint(4), res.Tag.ID)
	tags.AssertExpectations(t)
}

func TestResolve_TypeTagComposite(t *testing.T) {
	tags := &mockTagFinder{}
	piscina := &models.Tag{ID: 4, Name: "Con piscina", Slug: "con-piscina"}
	tags.On("FindTagBySlug", mock.Anything, "casas-con-piscina").Return(nil, database.ErrNotFound)
	tags.On("FindTagBySlug", mock.Anything, "con-piscina").Return(piscina, nil)

	res, err := NewResolver(tags, &mockNeighborhoodFinder{}).Resolve(context.Background(), "casas-con-piscina")
	require.NoError(t, err)
	assert.Equal(t, KindTypeTag, res.Kind)
	assert.Equal(t, "casa", res.Type)
	assert.Equal(t, piscina, res.Tag)
	assert.Equal(t, "casa-con-piscina", res.Slug)
	tags.AssertExpectations(t)
}

func TestResolve_Unresolved(t *testing.T) {
	tags := &mockTagFinder{}
	tags.On("FindTagBySlug", mock.Anything, mock.Anything).Return(nil, database.ErrNotFound)
	r := NewResolver(tags, &mockNeighborhoodFinder{})

	for _, seg := range []string{"castillos", "casa-inexistente", "xyz-con-piscina", ""} {
		res, err := r.Resolve(context.Background(), seg)
		require.NoError(t, err, seg)
		assert.Equal(t, KindUnresolved, res.Kind, seg)
		assert.False(t, res.Found())
	}

	// the left half is not a type, so the right half is never looked up
	tags.AssertNotCalled(t, "FindTagBySlug", mock.Anything, "con-piscina")
}

func TestResolve_TagStoreFailure(t *testing.T) {
	tags := &mockTagFinder{}
	tags.On("FindTagBySlug", mock.Anything, "con-piscina").Return(nil, errors.New("connection refused"))

	res, err := NewResolver(tags, &mockNeighborhoodFinder{}).Resolve(context.Background(), "con-piscina")
	assert.Error(t, err)
	assert.Equal(t, KindUnresolved, res.Kind)
}

func TestResolveNeighborhood(t *testing.T) {
	hoods := &mockNeighborhoodFinder{}
	caobos := &models.Neighborhood{ID: 2, Name: "Los Caobos", Slug: "los-caobos", City: "cucuta"}
	hoods.On("FindNeighborhoodBySlug", mock.Anything, "los-caobos").Return(caobos, nil)
	hoods.On("FindNeighborhoodBySlug", mock.Anything, "nowhere").Return(nil, database.ErrNotFound)
	r := NewResolver(&mockTagFinder{}, hoods)

	res, err := r.ResolveNeighborhood(context.Background(), "Los Caobos")
	require.NoError(t, err)
	assert.Equal(t, KindNeighborhood, res.Kind)
	assert.Equal(t, uint(2), res.Neighborhood.ID)

	res, err = r.ResolveNeighborhood(context.Background(), "nowhere")
	require.NoError(t, err)
	assert.False(t, res.Found())
}
