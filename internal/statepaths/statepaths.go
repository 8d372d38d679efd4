package statepaths

import (
	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/pathutil"
	"github.com/spf13/viper"
)

func FileStateDir() string {
	return pathutil.ResolveStateDir(viper.GetString("file_state_dir"))
}

// RegistryDir holds the first-contact user registry.
func RegistryDir() string {
	return pathutil.ResolveStateChildDir(
		viper.GetString("file_state_dir"),
		viper.GetString("registry.dir_name"),
		"registry",
	)
}

func FileCacheDir() string {
	return pathutil.NormalizeFileCacheDirPath(viper.GetString("file_cache_dir"))
}

func MessagesFile() string {
	return pathutil.ExpandHomePath(viper.GetString("messages.file"))
}
