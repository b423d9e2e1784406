package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/apptype"
)

// Dataset is a batch of documents and graph data to ingest. Nodes are
// written before edges so edges may reference nodes from the same batch.
type Dataset struct {
	Documents []apptype.Document  `json:"documents"`
	Nodes     []apptype.GraphNode `json:"nodes"`
	Edges     []apptype.GraphEdge `json:"edges"`
}

// IngestStats counts what Ingest stored.
type IngestStats struct {
	Documents int `json:"documents"`
	Nodes     int `json:"nodes"`
	Edges     int `json:"edges"`
}

// ReadDataset decodes a JSON dataset. Unknown fields are rejected.
func ReadDataset(r io.Reader) (Dataset, error) {
	var ds Dataset
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ds); err != nil {
		return Dataset{}, fmt.Errorf("decode dataset: %w", err)
	}
	return ds, nil
}

// Ingest writes documents, then nodes, then edges.
func (s *Service) Ingest(ctx context.Context, ds Dataset) (IngestStats, error) {
	var (
		st  IngestStats
		err error
	)
	if st.Documents, err = s.UpsertDocuments(ctx, ds.Documents); err != nil {
		return st, err
	}
	if st.Nodes, err = s.UpsertNodes(ctx, ds.Nodes); err != nil {
		return st, err
	}
	if st.Edges, err = s.UpsertEdges(ctx, ds.Edges); err != nil {
		return st, err
	}
	s.log.Info("dataset ingested", "documents", st.Documents, "nodes", st.Nodes, "edges", st.Edges)
	return st, nil
}

// Demo returns the sample support knowledge base: seven articles plus two
// customers, two products and two issues.
func Demo() Dataset {
	str, num := apptype.StringProp, apptype.NumberProp
	return Dataset{
		Documents: []apptype.Document{
			{
				ID:       "kb_001",
				Title:    "Password Reset Instructions",
				Content:  "To reset your password, go to the login page and click 'Forgot Password'. Enter your email address and follow the instructions sent to your email. If you don't receive the email within 5 minutes, check your spam folder. For additional security, you may be asked to verify your identity using two-factor authentication.",
				Category: "authentication",
				Tags:     []string{"password", "reset", "login", "email", "authentication", "2fa"},
				Metadata: map[string]string{"priority": "1", "last_updated": "2024-01-15", "author": "security_team"},
			},
			{
				ID:       "kb_002",
				Title:    "Account Activation Process",
				Content:  "New accounts must be activated within 24 hours of registration. Check your email for the activation link. If you don't see it, check your spam folder. You can also request a new activation email from the login page. Premium users get priority activation support.",
				Category: "account",
				Tags:     []string{"activation", "account", "email", "spam", "registration", "premium"},
				Metadata: map[string]string{"priority": "1", "last_updated": "2024-01-10", "author": "support_team"},
			},
			{
				ID:       "kb_003",
				Title:    "Premium Subscription Benefits and Features",
				Content:  "Premium subscriptions include: advanced analytics dashboard with real-time insights, priority customer support with 24/7 availability, full API access with higher rate limits (10,000 requests/hour), unlimited cloud storage, custom integrations and webhooks, early access to beta features, and dedicated account manager for enterprise plans.",
				Category: "subscription",
				Tags:     []string{"premium", "subscription", "features", "upgrade", "analytics", "api", "storage", "support"},
				Metadata: map[string]string{"priority": "2", "last_updated": "2024-01-20", "author": "product_team"},
			},
			{
				ID:       "kb_004",
				Title:    "Mobile App Download and Setup Guide",
				Content:  "Download our mobile app from the App Store (iOS) or Google Play Store (Android). Search for 'YourApp' or use the direct links on our website. Sign in with your existing account credentials. The app supports all premium features including offline sync, push notifications, and biometric authentication. Requires iOS 14+ or Android 8+.",
				Category: "mobile",
				Tags:     []string{"mobile", "app", "installation", "download", "ios", "android", "setup", "offline", "sync"},
				Metadata: map[string]string{"priority": "2", "last_updated": "2024-01-18", "author": "mobile_team"},
			},
			{
				ID:       "kb_005",
				Title:    "API Integration and Developer Documentation",
				Content:  "Our REST API supports authentication via API keys or OAuth 2.0. Rate limits: 1000 requests/hour for free accounts, 10,000/hour for premium. All endpoints return JSON with consistent error handling. We provide SDKs for Python, JavaScript, Java, and Go. Webhook support available for real-time notifications. See our developer portal for complete API reference, interactive documentation, and integration examples.",
				Category: "integration",
				Tags:     []string{"api", "integration", "rest", "authentication", "oauth", "rate", "limits", "json", "sdk", "webhook"},
				Metadata: map[string]string{"priority": "3", "last_updated": "2024-01-22", "author": "dev_team"},
			},
			{
				ID:       "kb_006",
				Title:    "Mobile App Troubleshooting and Common Issues",
				Content:  "Common mobile app issues and solutions: 1) Login problems - clear app cache, restart app, check internet connection. 2) Sync issues - enable background app refresh, check sync settings, try manual sync. 3) Premium features not working - verify subscription status in account settings, restart app. 4) App crashes - update to latest version, restart device, contact support if persists. 5) Performance issues - close other apps, check available storage space.",
				Category: "troubleshooting",
				Tags:     []string{"mobile", "app", "troubleshooting", "login", "sync", "premium", "crashes", "performance"},
				Metadata: map[string]string{"priority": "2", "last_updated": "2024-01-25", "author": "support_team"},
			},
			{
				ID:       "kb_007",
				Title:    "Third-Party API Integration and Data Sync",
				Content:  "Integrate with popular third-party services including Salesforce, HubSpot, Slack, Microsoft Teams, Google Workspace, and Zapier. Data sync happens in real-time with automatic retry logic for failed requests. Configure webhooks for bidirectional data flow. Monitor integration health through our dashboard. Premium users get access to enterprise connectors and custom integration support.",
				Category: "integration",
				Tags:     []string{"integration", "third-party", "sync", "salesforce", "hubspot", "slack", "webhook", "enterprise"},
				Metadata: map[string]string{"priority": "3", "last_updated": "2024-01-28", "author": "integration_team"},
			},
		},
		Nodes: []apptype.GraphNode{
			{ID: "customer_001", Type: "customer", Properties: apptype.Properties{"name": str("John Doe"), "tier": str("premium")}},
			{ID: "customer_002", Type: "customer", Properties: apptype.Properties{"name": str("Jane Smith"), "tier": str("free")}},
			{ID: "product_premium", Type: "product", Properties: apptype.Properties{"name": str("Premium Subscription"), "price": num(99)}},
			{ID: "product_mobile", Type: "product", Properties: apptype.Properties{"name": str("Mobile App"), "platform": str("cross")}},
			{ID: "issue_001", Type: "issue", Properties: apptype.Properties{"type": str("login_problem"), "severity": str("high")}},
			{ID: "issue_002", Type: "issue", Properties: apptype.Properties{"type": str("sync_problem"), "severity": str("medium")}},
		},
		Edges: []apptype.GraphEdge{
			{SourceID: "customer_001", TargetID: "product_premium", RelationshipType: "PURCHASED", Strength: 1.0},
			{SourceID: "customer_001", TargetID: "product_mobile", RelationshipType: "USES", Strength: 0.8},
			{SourceID: "customer_001", TargetID: "issue_001", RelationshipType: "REPORTED", Strength: 0.9},
			{SourceID: "customer_002", TargetID: "product_mobile", RelationshipType: "USES", Strength: 0.6},
			{SourceID: "customer_002", TargetID: "issue_002", RelationshipType: "REPORTED", Strength: 0.7},
			{SourceID: "product_premium", TargetID: "product_mobile", RelationshipType: "INCLUDES", Strength: 1.0},
		},
	}
}
