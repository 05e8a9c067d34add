package infra

import (
	"fmt"

	"github.com/aws/aws-cdk-go/awscdk/v2/awsapplicationautoscaling"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscertificatemanager"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsecs"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsecspatterns"
	"github.com/aws/aws-cdk-go/awscdk/v2/awselasticloadbalancingv2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsroute53"
	"github.com/aws/aws-cdk-go/awscdk/v2/awssecretsmanager"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
)

// SecretRef injects one field of a Secrets Manager secret as an env var.
type SecretRef struct {
	EnvVar     string
	SecretName string
	Field      string
}

// Listener maps one public HTTPS port to a container port.
type Listener struct {
	Name          string
	Port          int
	ContainerPort int
}

// WebServiceProps describes the containerised collaborator. Values are
// passed through to the managed services untouched.
type WebServiceProps struct {
	HostedZoneName   string
	Host             string
	EmailHost        string
	EmailPort        string
	EmailFromAddress string

	Image         string
	Cpu           int
	MemoryMiB     int
	MinTasks      int
	MaxTasks      int
	TargetPercent int
	Listeners     []Listener
	Secrets       []SecretRef
}

// DefaultListeners serves the UI on 443 and the API on 3100.
func DefaultListeners() []Listener {
	return []Listener{
		{Name: "ui", Port: 443, ContainerPort: 3000},
		{Name: "api", Port: 3100, ContainerPort: 3100},
	}
}

// DefaultSecrets are the three database and two email credentials.
func DefaultSecrets() []SecretRef {
	return []SecretRef{
		{EnvVar: "MONGODB_URI", SecretName: "prod/mongo", Field: "MONGODB_URI"},
		{EnvVar: "JWT_SECRET", SecretName: "prod/mongo", Field: "JWT_SECRET"},
		{EnvVar: "ENCRYPTION_KEY", SecretName: "prod/mongo", Field: "ENCRYPTION_KEY"},
		{EnvVar: "EMAIL_HOST_USER", SecretName: "prod/email", Field: "USER"},
		{EnvVar: "EMAIL_HOST_PASSWORD", SecretName: "prod/email", Field: "PASSWORD"},
	}
}

func (p *WebServiceProps) withDefaults() (WebServiceProps, error) {
	out := *p
	if out.HostedZoneName == "" || out.Host == "" {
		return out, fmt.Errorf("hosted zone and host are required")
	}
	if out.Image == "" {
		out.Image = "growthbook/growthbook:latest"
	}
	if out.Cpu == 0 {
		out.Cpu = 512
	}
	if out.MemoryMiB == 0 {
		out.MemoryMiB = 1024
	}
	if out.MinTasks == 0 {
		out.MinTasks = 1
	}
	if out.MaxTasks == 0 {
		out.MaxTasks = 5
	}
	if out.MaxTasks < out.MinTasks {
		return out, fmt.Errorf("max tasks %d below min tasks %d", out.MaxTasks, out.MinTasks)
	}
	if out.TargetPercent == 0 {
		out.TargetPercent = 50
	}
	if len(out.Listeners) == 0 {
		out.Listeners = DefaultListeners()
	}
	if out.Secrets == nil {
		out.Secrets = DefaultSecrets()
	}
	return out, nil
}

// DomainName is the public name of the service.
func (p WebServiceProps) DomainName() string {
	return p.Host + "." + p.HostedZoneName
}

// WebService is a load-balanced Fargate service behind a DNS-validated
// certificate, scaled on CPU and memory.
type WebService struct {
	constructs.Construct

	Service awsecspatterns.ApplicationMultipleTargetGroupsFargateService
}

func NewWebService(scope constructs.Construct, id string, props *WebServiceProps) (*WebService, error) {
	cfg, err := props.withDefaults()
	if err != nil {
		return nil, err
	}

	self := constructs.NewConstruct(scope, jsii.String(id))
	c := &WebService{Construct: self}
	domainName := cfg.DomainName()

	zone := awsroute53.HostedZone_FromLookup(self, jsii.String("Zone"), &awsroute53.HostedZoneProviderProps{
		DomainName: jsii.String(cfg.HostedZoneName),
	})

	cert := awscertificatemanager.NewCertificate(self, jsii.String("Certificate"), &awscertificatemanager.CertificateProps{
		DomainName: jsii.String(domainName),
		Validation: awscertificatemanager.CertificateValidation_FromDns(zone),
	})

	listeners := make([]*awsecspatterns.ApplicationListenerProps, 0, len(cfg.Listeners))
	targets := make([]*awsecspatterns.ApplicationTargetProps, 0, len(cfg.Listeners))
	ports := make([]*float64, 0, len(cfg.Listeners))
	for _, l := range cfg.Listeners {
		listeners = append(listeners, &awsecspatterns.ApplicationListenerProps{
			Name:        jsii.String(l.Name),
			Port:        jsii.Number(float64(l.Port)),
			Certificate: cert,
			Protocol:    awselasticloadbalancingv2.ApplicationProtocol_HTTPS,
			SslPolicy:   awselasticloadbalancingv2.SslPolicy_FORWARD_SECRECY_TLS12_RES_GCM,
		})
		targets = append(targets, &awsecspatterns.ApplicationTargetProps{
			ContainerPort: jsii.Number(float64(l.ContainerPort)),
			Listener:      jsii.String(l.Name),
		})
		ports = append(ports, jsii.Number(float64(l.ContainerPort)))
	}

	secrets := make(map[string]awsecs.Secret, len(cfg.Secrets))
	for _, s := range cfg.Secrets {
		secret := awssecretsmanager.Secret_FromSecretNameV2(self, jsii.String("secret"+s.EnvVar), jsii.String(s.SecretName))
		secrets[s.EnvVar] = awsecs.Secret_FromSecretsManager(secret, jsii.String(s.Field))
	}

	apiPort := cfg.Listeners[len(cfg.Listeners)-1].Port
	c.Service = awsecspatterns.NewApplicationMultipleTargetGroupsFargateService(self, jsii.String("Service"),
		&awsecspatterns.ApplicationMultipleTargetGroupsFargateServiceProps{
			Cpu:            jsii.Number(float64(cfg.Cpu)),
			MemoryLimitMiB: jsii.Number(float64(cfg.MemoryMiB)),
			DesiredCount:   jsii.Number(float64(cfg.MinTasks)),
			ServiceName:    jsii.String(cfg.Host),
			LoadBalancers: &[]*awsecspatterns.ApplicationLoadBalancerProps{{
				Name:               jsii.String(cfg.Host + "LoadBalancer"),
				DomainName:         jsii.String(domainName),
				DomainZone:         zone,
				Listeners:          &listeners,
				PublicLoadBalancer: jsii.Bool(true),
			}},
			TaskImageOptions: &awsecspatterns.ApplicationLoadBalancedTaskImageProps{
				Image: awsecs.ContainerImage_FromRegistry(jsii.String(cfg.Image), nil),
				Environment: &map[string]*string{
					"APP_ORIGIN":    jsii.String("https://" + domainName),
					"API_HOST":      jsii.String(fmt.Sprintf("https://%s:%d", domainName, apiPort)),
					"NODE_ENV":      jsii.String("production"),
					"EMAIL_ENABLED": jsii.String("true"),
					"EMAIL_HOST":    jsii.String(cfg.EmailHost),
					"EMAIL_PORT":    jsii.String(cfg.EmailPort),
					"EMAIL_FROM":    jsii.String(cfg.EmailFromAddress),
				},
				Secrets:        &secrets,
				ContainerPorts: &ports,
			},
			TargetGroups: &targets,
		})

	scaling := c.Service.Service().AutoScaleTaskCount(&awsapplicationautoscaling.EnableScalingProps{
		MinCapacity: jsii.Number(float64(cfg.MinTasks)),
		MaxCapacity: jsii.Number(float64(cfg.MaxTasks)),
	})
	scaling.ScaleOnCpuUtilization(jsii.String("CpuScaling"), &awsecs.CpuUtilizationScalingProps{
		TargetUtilizationPercent: jsii.Number(float64(cfg.TargetPercent)),
	})
	scaling.ScaleOnMemoryUtilization(jsii.String("MemoryScaling"), &awsecs.MemoryUtilizationScalingProps{
		TargetUtilizationPercent: jsii.Number(float64(cfg.TargetPercent)),
	})

	return c, nil
}
