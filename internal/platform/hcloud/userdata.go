package hcloud

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/imamik/gpurace/internal/config"
)

// containerName is the name of the workload container on every candidate.
const containerName = "workload"

type cloudConfig struct {
	PackageUpdate bool       `yaml:"package_update"`
	Packages      []string   `yaml:"packages"`
	RunCmd        [][]string `yaml:"runcmd"`
}

// UserData renders the cloud-init config that starts the intent's
// container. It returns "" when the intent names no image.
func UserData(intent *config.Intent) string {
	if intent == nil || intent.DockerImage == "" {
		return ""
	}

	run := []string{"docker", "run", "-d", "--restart", "unless-stopped", "--name", containerName}
	for _, port := range intent.Ports {
		proto := port.Protocol
		if proto == "" {
			proto = config.ProtocolTCP
		}
		run = append(run, "-p", fmt.Sprintf("%d:%d/%s", port.Port, port.Port, proto))
	}
	run = append(run, intent.DockerImage)

	cc := cloudConfig{
		PackageUpdate: true,
		Packages:      []string{"docker.io"},
		RunCmd: [][]string{
			{"systemctl", "enable", "--now", "docker"},
			run,
		},
	}
	data, err := yaml.Marshal(cc)
	if err != nil {
		// plain strings and slices always marshal
		panic(err)
	}
	return "#cloud-config\n" + string(data)
}
