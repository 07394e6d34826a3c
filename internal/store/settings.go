package store

import (
	"context"
	"sort"
	"strconv"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/GregMSThompson/potsync-backend/internal/models"
)

type settingStore struct {
	collection *firestore.CollectionRef
}

func NewSettingStore(client *firestore.Client) *settingStore {
	return &settingStore{collection: client.Collection("settings")}
}

// Get returns a setting value, falling back to the seeded default for keys
// that have never been written.
func (s *settingStore) Get(ctx context.Context, key string) (string, error) {
	snap, err := s.collection.Doc(key).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return models.DefaultSettings[key], nil
	}
	if err != nil {
		return "", err
	}
	var setting models.Setting
	if err := snap.DataTo(&setting); err != nil {
		return "", err
	}
	return setting.Value, nil
}

// GetBool parses a boolean setting; unparseable values read as false.
func (s *settingStore) GetBool(ctx context.Context, key string) (bool, error) {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return false, err
	}
	v, _ := strconv.ParseBool(raw)
	return v, nil
}

// GetInt parses an integer setting, using the default when the stored value
// is malformed.
func (s *settingStore) GetInt(ctx context.Context, key string) (int, error) {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		v, _ = strconv.Atoi(models.DefaultSettings[key])
	}
	return v, nil
}

// Save upserts one setting.
func (s *settingStore) Save(ctx context.Context, key, value string) error {
	_, err := s.collection.Doc(key).Set(ctx, models.Setting{Key: key, Value: value})
	return err
}

// All returns every stored setting merged over the defaults, so the portal
// always sees a complete set.
func (s *settingStore) All(ctx context.Context) ([]models.Setting, error) {
	merged := make(map[string]string, len(models.DefaultSettings))
	for key, value := range models.DefaultSettings {
		merged[key] = value
	}

	docs, err := s.collection.Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		var setting models.Setting
		if err := d.DataTo(&setting); err != nil {
			return nil, err
		}
		merged[setting.Key] = setting.Value
	}

	settings := make([]models.Setting, 0, len(merged))
	for key, value := range merged {
		settings = append(settings, models.Setting{Key: key, Value: value})
	}
	sort.Slice(settings, func(i, j int) bool { return settings[i].Key < settings[j].Key })
	return settings, nil
}
