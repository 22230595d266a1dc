// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package flasher

import (
	_ "embed"
	"fmt"
	"maps"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"
)

// Actions a flash method may support.
const (
	ActionListDevices = "list_devices"
	ActionBoot        = "boot"
	ActionFlashKernel = "flash_kernel"
	ActionFlashRootfs = "flash_rootfs"
	ActionFlashVbmeta = "flash_vbmeta"
	ActionSideload    = "sideload"
	ActionListFlavors = "list_flavors"

	// ActionFlashSystem is the legacy name of [ActionFlashRootfs].
	ActionFlashSystem = "flash_system"
)

// MethodNone is the flash method of devices that can not be flashed.
const MethodNone = "none"

//go:embed methods.yaml
var methodsYAML []byte

// Method is a flash method.
type Method struct {
	// Depends are the packages required in the native chroot.
	Depends []string `yaml:"depends"`
	// Split is set if the method needs separate boot and root images.
	Split bool `yaml:"split"`
	// Actions are the commands run for each supported action.
	Actions map[string][][]string `yaml:"actions"`
}

// Supports returns if the method supports the action.
func (m Method) Supports(action string) bool {
	_, exists := m.Actions[action]
	return exists
}

var loadMethods = sync.OnceValues(func() (map[string]Method, error) {
	var methods map[string]Method

	err := yaml.Unmarshal(methodsYAML, &methods)
	if err != nil {
		return nil, fmt.Errorf("decode flash methods: %w", err)
	}

	return methods, nil
})

// Methods returns the names of all flash methods.
func Methods() []string {
	methods, _ := loadMethods()
	return slices.Sorted(maps.Keys(methods))
}

// Lookup returns the flash method with the given name.
func Lookup(name string) (Method, error) {
	methods, err := loadMethods()
	if err != nil {
		return Method{}, err
	}

	method, exists := methods[name]
	if !exists {
		return Method{}, fmt.Errorf("%w: %s", ErrUnknownMethod, name)
	}

	return method, nil
}
