// Package docutil 提供文档缓存目录相关的工具函数。
package docutil

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/kart-io/sentinel-advisor/pkg/utils/json"
)

// FileNameFromURL 由 URL 生成本地缓存文件名：
// host 中的 "." 替换为 "_"，path 中的 "/" 替换为 "_"，缺少 .html 后缀时补上。
//
//	https://www.ncloud-forums.com/topic/422/ -> www_ncloud-forums_com_topic_422_.html
func FileNameFromURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid url %q: missing host", raw)
	}

	name := strings.ReplaceAll(u.Host, ".", "_") + strings.ReplaceAll(u.Path, "/", "_")
	if !strings.HasSuffix(name, ".html") {
		name += ".html"
	}
	return name, nil
}

// EnsureDir 确保目录存在，如果不存在则创建。
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// FindFiles 在目录中查找匹配指定扩展名的文件（不区分大小写）。
func FindFiles(dir string, extensions []string) ([]string, error) {
	var files []string
	extMap := make(map[string]bool)
	for _, ext := range extensions {
		extMap[strings.ToLower(ext)] = true
	}

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && extMap[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// MoveFile 将 src 移动到 dest。dest 已存在时不做任何事并返回 false。
// 跨文件系统时退化为复制后删除。
func MoveFile(src, dest string) (bool, error) {
	if fileExists(dest) {
		return false, nil
	}
	if err := EnsureDir(filepath.Dir(dest)); err != nil {
		return false, err
	}

	err := os.Rename(src, dest)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return false, err
	}

	if err := copyFile(src, dest); err != nil {
		return false, err
	}
	return true, os.Remove(src)
}

func copyFile(src, dest string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	_, err = io.Copy(out, in)
	return err
}

// WriteJSON 以两个空格缩进写入 JSON 文件。
func WriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadJSON 读取 JSON 文件到 v。
func ReadJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
