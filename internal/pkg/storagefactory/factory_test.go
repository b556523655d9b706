package storagefactory

import (
	"context"
	"path/filepath"
	"testing"

	"copilot/internal/config"
)

func TestNewStorage(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name     string
		cfg      config.StorageConfig
		wantType string
		wantErr  bool
	}{
		{
			name: "valid local storage config",
			cfg: config.StorageConfig{
				Type:  "local",
				Local: &config.LocalConfig{BasePath: filepath.Join(tmpDir, "kv")},
			},
			wantType: "local",
		},
		{
			name: "empty type defaults to local",
			cfg: config.StorageConfig{
				Local: &config.LocalConfig{BasePath: filepath.Join(tmpDir, "default")},
			},
			wantType: "local",
		},
		{
			name:    "missing local config",
			cfg:     config.StorageConfig{Type: "local"},
			wantErr: true,
		},
		{
			name:     "memory storage",
			cfg:      config.StorageConfig{Type: "memory"},
			wantType: "memory",
		},
		{
			name:    "missing oss config",
			cfg:     config.StorageConfig{Type: "oss"},
			wantErr: true,
		},
		{
			name:    "redis without addr",
			cfg:     config.StorageConfig{Type: "redis"},
			wantErr: true,
		},
		{
			name:    "mongo without uri",
			cfg:     config.StorageConfig{Type: "mongo"},
			wantErr: true,
		},
		{
			name:    "unsupported storage type",
			cfg:     config.StorageConfig{Type: "invalid"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			kv, err := NewStorage(ctx, &config.Config{Storage: tt.cfg})

			if tt.wantErr {
				if err == nil {
					t.Errorf("NewStorage() expected error, got nil")
				}
				if kv != nil {
					t.Errorf("NewStorage() expected nil storage, got %v", kv)
				}
				return
			}

			if err != nil {
				t.Fatalf("NewStorage() unexpected error: %v", err)
			}
			if got := kv.GetStorageType(); got != tt.wantType {
				t.Errorf("GetStorageType() = %v, want %v", got, tt.wantType)
			}
			if err := Close(ctx, kv); err != nil {
				t.Errorf("Close() error = %v", err)
			}
		})
	}
}

func TestLocalStorage_Operations(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{Storage: config.StorageConfig{
		Type:  "local",
		Local: &config.LocalConfig{BasePath: t.TempDir()},
	}}

	kv, err := NewStorage(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	// 不存在的 key
	if _, ok, err := kv.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok %v err %v, want absent", ok, err)
	}

	// 写入与读取
	if err := kv.Set(ctx, "conversations", `[{"id":"a"}]`); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	v, ok, err := kv.Get(ctx, "conversations")
	if err != nil || !ok {
		t.Fatalf("Get() ok %v err %v", ok, err)
	}
	if v != `[{"id":"a"}]` {
		t.Errorf("Get() = %v", v)
	}

	// 覆盖写入
	if err := kv.Set(ctx, "conversations", `[]`); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if v, _, _ := kv.Get(ctx, "conversations"); v != `[]` {
		t.Errorf("Get() after overwrite = %v", v)
	}

	// 删除，重复删除应成功
	if err := kv.Delete(ctx, "conversations"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := kv.Delete(ctx, "conversations"); err != nil {
		t.Errorf("Delete() error = %v, should succeed for non-existent key", err)
	}
	if _, ok, _ := kv.Get(ctx, "conversations"); ok {
		t.Errorf("Get() after delete should be absent")
	}

	// 非法 key
	if err := kv.Set(ctx, "../escape", "x"); err == nil {
		t.Errorf("Set() with traversal key should fail")
	}
}

func TestMemoryStorage_Operations(t *testing.T) {
	ctx := context.Background()
	kv, err := NewStorage(ctx, &config.Config{Storage: config.StorageConfig{Type: "memory"}})
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	if err := kv.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if v, ok, _ := kv.Get(ctx, "k"); !ok || v != "v" {
		t.Errorf("Get() = %v, %v", v, ok)
	}
	if err := kv.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok, _ := kv.Get(ctx, "k"); ok {
		t.Errorf("Get() after delete should be absent")
	}
}
