package assets

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCatalog = `
default: coupe
cars:
  - id: coupe
    name: Sports Coupe
    model: models/coupe.glb
    materials:
      body: "#c0392b"
      glass: "#1e272e"
  - id: truck
    name: Pickup
    model: models/truck.glb
    scale: 1.4
`

func TestLoadCatalog(t *testing.T) {
	c, err := LoadCatalog(strings.NewReader(sampleCatalog))
	require.NoError(t, err)

	car, err := c.Car("")
	require.NoError(t, err)
	assert.Equal(t, "coupe", car.ID)
	assert.Equal(t, 1.0, car.Scale, "scale defaults to 1")
	assert.Equal(t, "#c0392b", car.Materials["body"])

	car, err = c.Car("truck")
	require.NoError(t, err)
	assert.Equal(t, 1.4, car.Scale)

	_, err = c.Car("bus")
	assert.ErrorIs(t, err, ErrUnknownCar)

	assert.Equal(t, []string{"models/coupe.glb", "models/truck.glb"}, c.Models())
}

func TestLoadCatalog_Invalid(t *testing.T) {
	cases := map[string]string{
		"empty":         `default: coupe`,
		"no default":    "default: bus\ncars:\n  - {id: coupe, model: a.glb}\n",
		"duplicate":     "default: a\ncars:\n  - {id: a, model: a.glb}\n  - {id: a, model: b.glb}\n",
		"missing id":    "default: a\ncars:\n  - {model: a.glb}\n",
		"missing model": "default: a\ncars:\n  - {id: a}\n",
		"escape":        "default: a\ncars:\n  - {id: a, model: ../a.glb}\n",
		"scale":         "default: a\ncars:\n  - {id: a, model: a.glb, scale: -2}\n",
		"color":         "default: a\ncars:\n  - {id: a, model: a.glb, materials: {body: red}}\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadCatalog(strings.NewReader(doc))
			assert.ErrorIs(t, err, ErrInvalidCatalog)
		})
	}
}

func TestLoadCatalog_UnknownField(t *testing.T) {
	_, err := LoadCatalog(strings.NewReader("default: a\nwheels: 4\ncars:\n  - {id: a, model: a.glb}\n"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCatalog)
}

func TestCatalog_ModelsLoadWithFileLoader(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "models/coupe.glb", "c")
	writeFile(t, root, "models/truck.glb", "t")
	writeFile(t, root, "catalog.yaml", sampleCatalog)

	c, err := LoadCatalogFile(root + "/catalog.yaml")
	require.NoError(t, err)

	data, err := LoadAll(context.Background(), FileLoader{Root: root}, 4, c.Models()...)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("c"), []byte("t")}, data)
}
