// Package benchfile loads HCL harness descriptions.
//
//	stack    = "netbench"
//	scenario = "echo"
//	image    = env.NETBENCH_IMAGE
//	bucket   = "bench-bucket"
//
//	network {
//	  vpc_id  = "vpc-1"
//	  subnets = ["subnet-a", "subnet-b"]
//	}
//	server { instance_type = "m6g.large" }
//	client { instance_type = "m6g.large" }
//
// Every attribute and block is optional; unset values leave the
// configuration they are applied to unchanged.
package benchfile

import (
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/netbench/harness/backends/ecs"
)

// File is a decoded harness description.
type File struct {
	Stack    string        `hcl:"stack,optional"`
	Scenario string        `hcl:"scenario,optional"`
	Image    string        `hcl:"image,optional"`
	Bucket   string        `hcl:"bucket,optional"`
	Network  *NetworkBlock `hcl:"network,block"`
	Server   *RoleBlock    `hcl:"server,block"`
	Client   *RoleBlock    `hcl:"client,block"`
}

// NetworkBlock is the shared network of both roles.
type NetworkBlock struct {
	VPCID   string   `hcl:"vpc_id,optional"`
	Subnets []string `hcl:"subnets,optional"`
}

// RoleBlock holds per-role settings.
type RoleBlock struct {
	InstanceType string `hcl:"instance_type,optional"`
}

// Load parses the file at path. Expressions may reference the process
// environment as env.<NAME>.
func Load(path string) (*File, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read harness file %s: %w", path, err)
	}
	return Parse(src, path, environ())
}

// Parse decodes HCL source. env is exposed to expressions as the env object.
func Parse(src []byte, filename string, env map[string]string) (*File, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}

	var f File
	diags = gohcl.DecodeBody(hclFile.Body, evalContext(env), &f)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}

	return &f, nil
}

func evalContext(env map[string]string) *hcl.EvalContext {
	vals := make(map[string]cty.Value, len(env))
	for k, v := range env {
		vals[k] = cty.StringVal(v)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.ObjectVal(vals),
		},
	}
}

func environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

// Apply overlays the values set in the file on cfg.
func (f *File) Apply(cfg *ecs.Config) {
	setString(&cfg.StackName, f.Stack)
	setString(&cfg.Scenario, f.Scenario)
	setString(&cfg.Image, f.Image)
	setString(&cfg.Bucket, f.Bucket)
	if f.Network != nil {
		setString(&cfg.VPCID, f.Network.VPCID)
		if len(f.Network.Subnets) > 0 {
			cfg.Subnets = append([]string(nil), f.Network.Subnets...)
		}
	}
	if f.Server != nil {
		setString(&cfg.ServerInstanceType, f.Server.InstanceType)
	}
	if f.Client != nil {
		setString(&cfg.ClientInstanceType, f.Client.InstanceType)
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
