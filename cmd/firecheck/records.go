package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"firecheck/pkg/domain"
)

// changed returns a pointer to the flag's value when it was set explicitly.
func changed(flags *pflag.FlagSet, name string) *string {
	if !flags.Changed(name) {
		return nil
	}
	v, _ := flags.GetString(name)
	return &v
}

func siteCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "site",
		Short: "Manage inspected sites",
	}

	var site domain.Site
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a site",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			created, err := a.svc.CreateSite(cmd.Context(), site)
			if err != nil {
				return err
			}
			return a.print(created)
		},
	}
	siteFlags(create.Flags(), &site)

	var patch domain.Site
	update := &cobra.Command{
		Use:   "update <site-id>",
		Short: "Update fields of a site",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			updated, err := a.svc.UpdateSite(cmd.Context(), args[0], domain.SitePatch{
				Name:         changed(f, "name"),
				Address:      changed(f, "address"),
				Phone:        changed(f, "phone"),
				ManagerName:  changed(f, "manager-name"),
				ManagerPhone: changed(f, "manager-phone"),
				ManagerEmail: changed(f, "manager-email"),
				ApprovalDate: changed(f, "approval-date"),
				Notes:        changed(f, "notes"),
			})
			if err != nil {
				return err
			}
			return a.print(updated)
		},
	}
	siteFlags(update.Flags(), &patch)

	cmd.AddCommand(
		create,
		update,
		&cobra.Command{
			Use:   "list",
			Short: "List sites, newest first",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				return a.print(a.svc.ListSites())
			},
		},
		&cobra.Command{
			Use:   "delete <site-id>",
			Short: "Delete a site with its inspections and issues",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.svc.DeleteSite(cmd.Context(), args[0])
			},
		},
	)
	return cmd
}

func siteFlags(f *pflag.FlagSet, site *domain.Site) {
	f.StringVar(&site.Name, "name", "", "site name")
	f.StringVar(&site.Address, "address", "", "street address")
	f.StringVar(&site.Phone, "phone", "", "site phone")
	f.StringVar(&site.ManagerName, "manager-name", "", "safety manager name")
	f.StringVar(&site.ManagerPhone, "manager-phone", "", "safety manager phone")
	f.StringVar(&site.ManagerEmail, "manager-email", "", "safety manager email")
	f.StringVar(&site.ApprovalDate, "approval-date", "", "building approval date (YYYY-MM-DD)")
	f.StringVar(&site.Notes, "notes", "", "free-form notes")
}

func inspectionCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspection",
		Short: "Manage inspections",
	}

	var (
		inspection     domain.Inspection
		inspectionType string
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Start an inspection at a site",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			inspection.InspectionType = domain.InspectionType(inspectionType)
			created, err := a.svc.CreateInspection(cmd.Context(), inspection)
			if err != nil {
				return err
			}
			return a.print(created)
		},
	}
	create.Flags().StringVar(&inspection.SiteID, "site", "", "site id")
	create.Flags().StringVar(&inspection.Inspector, "inspector", "", "inspector name")
	create.Flags().StringVar(&inspectionType, "type", string(domain.InspectionOperational), "inspection type")
	create.Flags().StringVar(&inspection.Notes, "notes", "", "inspection notes")

	update := &cobra.Command{
		Use:   "update <inspection-id>",
		Short: "Update inspector, type or notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			patch := domain.InspectionPatch{
				Inspector: changed(f, "inspector"),
				Notes:     changed(f, "notes"),
			}
			if v := changed(f, "type"); v != nil {
				t := domain.InspectionType(*v)
				patch.InspectionType = &t
			}
			updated, err := a.svc.UpdateInspection(cmd.Context(), args[0], patch)
			if err != nil {
				return err
			}
			return a.print(updated)
		},
	}
	update.Flags().String("inspector", "", "inspector name")
	update.Flags().String("type", "", "inspection type")
	update.Flags().String("notes", "", "inspection notes")

	var siteID string
	list := &cobra.Command{
		Use:   "list",
		Short: "List inspections, newest first",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if siteID != "" {
				return a.print(a.svc.InspectionsForSite(siteID))
			}
			return a.print(a.svc.ListInspections())
		},
	}
	list.Flags().StringVar(&siteID, "site", "", "only inspections of this site")

	cmd.AddCommand(
		create,
		update,
		list,
		&cobra.Command{
			Use:   "delete <inspection-id>",
			Short: "Delete an inspection and its issues",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.svc.DeleteInspection(cmd.Context(), args[0])
			},
		},
	)
	return cmd
}

func issueCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Record issues found during an inspection",
	}

	var (
		issue    domain.Issue
		facility string
	)
	add := &cobra.Command{
		Use:   "add <inspection-id>",
		Short: "Add an issue to an inspection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			issue.InspectionID = args[0]
			issue.FacilityType = domain.FacilityType(facility)
			created, err := a.svc.AddIssue(cmd.Context(), issue)
			if err != nil {
				return err
			}
			return a.print(created)
		},
	}
	add.Flags().StringVar(&facility, "facility", "", "facility category")
	add.Flags().StringVar(&issue.Description, "description", "", "what is wrong")
	add.Flags().StringVar(&issue.Location, "location", "", "where it is")
	add.Flags().StringVar(&issue.DetailLocation, "detail", "", "detailed location, e.g. floor")

	update := &cobra.Command{
		Use:   "update <issue-id>",
		Short: "Update an issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			patch := domain.IssuePatch{
				Description:    changed(f, "description"),
				Location:       changed(f, "location"),
				DetailLocation: changed(f, "detail"),
			}
			if v := changed(f, "facility"); v != nil {
				ft := domain.FacilityType(*v)
				patch.FacilityType = &ft
			}
			updated, err := a.svc.UpdateIssue(cmd.Context(), args[0], patch)
			if err != nil {
				return err
			}
			return a.print(updated)
		},
	}
	update.Flags().String("facility", "", "facility category")
	update.Flags().String("description", "", "what is wrong")
	update.Flags().String("location", "", "where it is")
	update.Flags().String("detail", "", "detailed location")

	cmd.AddCommand(
		add,
		update,
		&cobra.Command{
			Use:   "delete <issue-id>",
			Short: "Delete an issue",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.svc.DeleteIssue(cmd.Context(), args[0])
			},
		},
	)
	return cmd
}
