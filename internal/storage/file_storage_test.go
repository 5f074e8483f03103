// internal/storage/file_storage_test.go
package storage

import (
	"os"
	"path/filepath"
	"testing"
)

type sampleRecord struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

func setupFileStorage(t *testing.T) *FileStorage {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "amuse-storage-test-*")
	if err != nil {
		t.Fatalf("创建临时目录失败: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	fs, err := NewFileStorage(tempDir)
	if err != nil {
		t.Fatalf("创建文件存储失败: %v", err)
	}
	return fs
}

// TestSaveAndLoadJSON 保存后读取得到相同数据
func TestSaveAndLoadJSON(t *testing.T) {
	fs := setupFileStorage(t)

	original := &sampleRecord{ID: "record-1", Count: 42}
	if err := fs.SaveJSON("novels/n1", "record.json", original); err != nil {
		t.Fatalf("保存失败: %v", err)
	}

	loaded := &sampleRecord{}
	if err := fs.LoadJSON("novels/n1", "record.json", loaded); err != nil {
		t.Fatalf("读取失败: %v", err)
	}
	if loaded.ID != original.ID || loaded.Count != original.Count {
		t.Errorf("读取结果 = %+v, 期望 %+v", loaded, original)
	}

	// 覆盖写后读到新值（穿过缓存）
	original.Count = 100
	if err := fs.SaveJSON("novels/n1", "record.json", original); err != nil {
		t.Fatalf("覆盖保存失败: %v", err)
	}
	if err := fs.LoadJSON("novels/n1", "record.json", loaded); err != nil {
		t.Fatalf("再次读取失败: %v", err)
	}
	if loaded.Count != 100 {
		t.Errorf("覆盖后Count = %d, 期望 100", loaded.Count)
	}
}

// TestLoadMissingFile 读取不存在的文件
func TestLoadMissingFile(t *testing.T) {
	fs := setupFileStorage(t)

	loaded := &sampleRecord{}
	if err := fs.LoadJSON("novels/none", "record.json", loaded); err == nil {
		t.Error("读取不存在的文件应报错")
	}
	if fs.FileExists("novels/none", "record.json") {
		t.Error("文件不应存在")
	}
}

// TestDeleteDir 删除目录后文件与子目录消失
func TestDeleteDir(t *testing.T) {
	fs := setupFileStorage(t)

	if err := fs.SaveJSON("novels/n1", "a.json", &sampleRecord{ID: "a"}); err != nil {
		t.Fatalf("保存失败: %v", err)
	}
	if err := fs.DeleteDir("novels/n1"); err != nil {
		t.Fatalf("删除目录失败: %v", err)
	}
	if fs.FileExists("novels/n1", "a.json") {
		t.Error("删除后文件不应存在")
	}

	// 重复删除应报错
	if err := fs.DeleteDir("novels/n1"); err == nil {
		t.Error("删除不存在的目录应报错")
	}
}

// TestListDirs 列出子目录
func TestListDirs(t *testing.T) {
	fs := setupFileStorage(t)

	for _, id := range []string{"n1", "n2", "n3"} {
		if err := fs.SaveJSON(filepath.Join("novels", id), "novel.json", &sampleRecord{ID: id}); err != nil {
			t.Fatalf("保存失败: %v", err)
		}
	}

	dirs, err := fs.ListDirs("novels")
	if err != nil {
		t.Fatalf("列出目录失败: %v", err)
	}
	if len(dirs) != 3 {
		t.Errorf("子目录数 = %d, 期望 3", len(dirs))
	}

	// 不存在的目录返回空列表而不是错误
	empty, err := fs.ListDirs("nothing")
	if err != nil {
		t.Fatalf("不存在的目录不应报错: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("应返回空列表，得到 %v", empty)
	}
}
