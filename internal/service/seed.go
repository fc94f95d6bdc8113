package service

import (
	"context"
	"fmt"
	"os"

	"farmrent/internal/models"

	"gopkg.in/yaml.v3"
)

// Catalog is the seed file format: profiles and listings of one origin.
type Catalog struct {
	Users     []models.User      `yaml:"users"`
	Machinery []models.Machinery `yaml:"machinery"`
}

func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return &c, nil
}

// Seed upserts every profile and listing. It stops at the first invalid entry.
func Seed(ctx context.Context, c *Catalog, users *UserService, catalog *CatalogService) (int, int, error) {
	for i := range c.Users {
		if err := users.SaveUser(ctx, &c.Users[i]); err != nil {
			return i, 0, fmt.Errorf("user %q: %w", c.Users[i].Email, err)
		}
	}
	for i := range c.Machinery {
		if err := catalog.SaveMachinery(ctx, &c.Machinery[i]); err != nil {
			return len(c.Users), i, fmt.Errorf("machinery %q: %w", c.Machinery[i].ID, err)
		}
	}
	return len(c.Users), len(c.Machinery), nil
}
