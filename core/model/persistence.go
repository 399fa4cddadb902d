package model

import (
	"encoding/gob"
	"io"
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/sentsim/pkg/errors"
)

const (
	dirMode  = 0o755
	fileMode = 0o644
)

// SaveModel はモデルをgob形式でファイルに保存する。
// 親ディレクトリがなければ作成し、一時ファイル経由で書き込む。
//
//	clf := xgboost.NewXGBClassifier()
//	// ... 学習 ...
//	err := model.SaveModel(clf, "weights/xgb.gob")
func SaveModel(m interface{}, filename string) error {
	return WriteFileAtomic(filename, func(w io.Writer) error {
		return SaveModelToWriter(m, w)
	})
}

// LoadModel はgob形式のファイルからモデルを読み込む。mはポインタ。
func LoadModel(m interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrapf(err, "failed to open model file %s", filename)
	}
	defer file.Close()
	return LoadModelFromReader(m, file)
}

// SaveModelToWriter はモデルをgob形式でwに書き込む
func SaveModelToWriter(m interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(m); err != nil {
		return errors.NewModelError("SaveModel", "failed to encode model", err)
	}
	return nil
}

// LoadModelFromReader はrからgob形式のモデルを読み込む
func LoadModelFromReader(m interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(m); err != nil {
		return errors.NewModelError("LoadModel", "failed to decode model", err)
	}
	return nil
}

// WriteFileAtomic は同じディレクトリの一時ファイルにwriteで書き込み、
// 成功した場合のみfilenameへrenameする
func WriteFileAtomic(filename string, write func(w io.Writer) error) (err error) {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return errors.Wrapf(err, "failed to create directory %s", dir)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(filename)+".*")
	if err != nil {
		return errors.Wrap(err, "failed to create temporary file")
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = write(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close temporary file")
	}
	if err = os.Chmod(tmp.Name(), fileMode); err != nil {
		return errors.Wrap(err, "failed to set file mode")
	}
	if err = os.Rename(tmp.Name(), filename); err != nil {
		return errors.Wrapf(err, "failed to move model into %s", filename)
	}
	return nil
}
