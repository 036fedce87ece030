package configuration

import (
	"encoding/json"
	"os"
)

type MongoConfig struct {
	Uri                    string `json:"uri"`
	Database               string `json:"database"`
	MessagesCollection     string `json:"messagesCollection"`
	FriendshipsCollection  string `json:"friendshipsCollection"`
	GroupMembersCollection string `json:"groupMembersCollection"`
	SocketRoute            string `json:"socketRoute"`
}

type AuthConfig struct {
	JwtSecret string `json:"jwt_secret"`
}

type ServerConfig struct {
	AppPort    int `json:"app_port"`
	SocketPort int `json:"socket_port"`
}

type Config struct {
	ChatDatabase MongoConfig  `json:"mongo"`
	Auth         AuthConfig   `json:"auth"`
	Server       ServerConfig `json:"server"`
}

func LoadConfig(config_path string) (*Config, error) {
	file, err := os.ReadFile(config_path)
	if err != nil {
		return nil, err
	}

	var config Config
	err = json.Unmarshal(file, &config)
	if err != nil {
		return nil, err
	}

	return &config, nil
}
